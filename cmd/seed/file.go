package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type seedAccount struct {
	Name           string          `yaml:"name"`
	Email          string          `yaml:"email"`
	Password       string          `yaml:"password"`
	Role           string          `yaml:"role"`
	OpeningBalance decimal.Decimal `yaml:"opening_balance"`
}

type seedFile struct {
	Accounts []seedAccount `yaml:"accounts"`
}

func loadSeedFile(path string) ([]seedAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSeed(raw)
}

func parseSeed(raw []byte) ([]seedAccount, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Accounts))
	for i, a := range f.Accounts {
		switch {
		case strings.TrimSpace(a.Email) == "":
			return nil, fmt.Errorf("account %d: email is required", i)
		case len(a.Password) < 8:
			return nil, fmt.Errorf("account %s: password must be at least 8 characters", a.Email)
		case a.OpeningBalance.IsNegative():
			return nil, fmt.Errorf("account %s: opening_balance must not be negative", a.Email)
		}
		if _, dup := seen[a.Email]; dup {
			return nil, fmt.Errorf("account %s listed twice", a.Email)
		}
		seen[a.Email] = struct{}{}
		if f.Accounts[i].Role == "" {
			f.Accounts[i].Role = "user"
		}
	}
	return f.Accounts, nil
}

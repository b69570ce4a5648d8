package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/utils"
)

type accountsFile struct {
	Accounts []*models.Account `yaml:"accounts"`
}

// LoadAccounts reads the accounts file supplied at startup. Missing required
// fields are startup-fatal; the engine never sees a partial descriptor.
func LoadAccounts(path string) ([]*models.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file %s: %w", path, err)
	}

	var file accountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing accounts file %s: %w", path, err)
	}

	if len(file.Accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s contains no accounts", path)
	}

	seen := make(map[string]bool, len(file.Accounts))
	for i, account := range file.Accounts {
		if err := ValidateAccount(account); err != nil {
			return nil, fmt.Errorf("account %d: %w", i+1, err)
		}
		if account.ID == "" {
			account.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
		}
		if seen[account.ID] {
			return nil, fmt.Errorf("duplicate account id %s", account.ID)
		}
		seen[account.ID] = true
	}

	return file.Accounts, nil
}

// ValidateAccount checks required fields and applies defaults for the
// optional ones (mailbox defaults to INBOX, label to the username).
func ValidateAccount(account *models.Account) error {
	if account == nil {
		return fmt.Errorf("account is nil")
	}
	if account.Server == "" {
		return fmt.Errorf("server is required")
	}
	if account.Username == "" {
		return fmt.Errorf("username is required")
	}
	if account.Password == "" {
		return fmt.Errorf("password is required")
	}
	if account.Port == 0 {
		if account.TLS {
			account.Port = 993
		} else {
			account.Port = 143
		}
	}
	if account.Mailbox == "" {
		account.Mailbox = models.DefaultMailbox
	}
	if account.Label == "" {
		account.Label = account.Username
	}
	return nil
}

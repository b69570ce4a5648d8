package models

const DefaultMailbox = "INBOX"

// Account holds the connection parameters for one IMAP account. Immutable
// once loaded; shared read-only with the account's supervisor.
type Account struct {
	ID       string `json:"id" yaml:"id"`
	Label    string `json:"label" yaml:"label"`
	Server   string `json:"server" yaml:"server"`
	Port     int    `json:"port" yaml:"port"`
	TLS      bool   `json:"tls" yaml:"tls"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"password"`
	Mailbox  string `json:"mailbox" yaml:"mailbox"`
}

// DisplayLabel is the label used in logs and status output.
func (a *Account) DisplayLabel() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Username
}

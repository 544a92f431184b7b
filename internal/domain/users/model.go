package users

import (
	"strings"

	"github.com/Spok95/makerspace/internal/docstore"
)

const Collection = "users"

type Provider string

const (
	ProviderPassword  Provider = "password"
	ProviderFederated Provider = "federated"
)

type User struct {
	ID          string
	DisplayName string
	Email       string
	IsMember    bool
	Provider    Provider
}

// Account: пользователь вместе с хешем пароля; наружу не отдаётся.
type Account struct {
	User
	PasswordHash string
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Ref: документы пользователей ключуются нормализованным email.
func Ref(email string) docstore.Ref {
	return docstore.NewRef(Collection, NormalizeEmail(email))
}

func (a Account) Fields() docstore.Fields {
	return docstore.Fields{
		"uid":           a.ID,
		"display_name":  a.DisplayName,
		"email":         NormalizeEmail(a.Email),
		"password_hash": a.PasswordHash,
		"is_member":     a.IsMember,
		"provider":      string(a.Provider),
	}
}

func FromDocument(d docstore.Document) Account {
	email := d.Fields.Text("email")
	if email == "" {
		email = d.ID
	}
	return Account{
		User: User{
			ID:          d.Fields.Text("uid"),
			DisplayName: d.Fields.Text("display_name"),
			Email:       email,
			IsMember:    d.Fields.Bool("is_member"),
			Provider:    Provider(d.Fields.Text("provider")),
		},
		PasswordHash: d.Fields.Text("password_hash"),
	}
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainPolicy_Check(t *testing.T) {
	tests := []struct {
		name            string
		domains         []string
		allowSubdomains bool
		email           string
		wantErr         error
	}{
		{
			name:    "exact match",
			domains: []string{"example.com"},
			email:   "alice@example.com",
		},
		{
			name:    "case insensitive",
			domains: []string{"Example.COM"},
			email:   "alice@EXAMPLE.com",
		},
		{
			name:    "not in allowlist",
			domains: []string{"example.com"},
			email:   "alice@other.com",
			wantErr: ErrDomainNotAllowed,
		},
		{
			name:    "subdomain rejected without flag",
			domains: []string{"example.com"},
			email:   "alice@mail.example.com",
			wantErr: ErrDomainNotAllowed,
		},
		{
			name:            "subdomain allowed with flag",
			domains:         []string{"example.com"},
			allowSubdomains: true,
			email:           "alice@mail.corp.example.com",
		},
		{
			name:            "unrelated domain still rejected with flag",
			domains:         []string{"example.com"},
			allowSubdomains: true,
			email:           "alice@example.org",
			wantErr:         ErrDomainNotAllowed,
		},
		{
			name:    "no at sign",
			domains: []string{"example.com"},
			email:   "not-an-email",
			wantErr: ErrInvalidAddr,
		},
		{
			name:    "trailing at sign",
			domains: []string{"example.com"},
			email:   "alice@",
			wantErr: ErrInvalidAddr,
		},
		{
			name:    "empty email",
			domains: []string{"example.com"},
			email:   "",
			wantErr: ErrInvalidAddr,
		},
		{
			name:    "empty allowlist rejects everything",
			domains: nil,
			email:   "alice@example.com",
			wantErr: ErrDomainNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewDomainPolicy(tt.domains, tt.allowSubdomains)
			err := policy.Check(tt.email)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

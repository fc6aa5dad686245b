package scanner

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "netaudit/internal/domain"
)

func TestNormalizeTarget(t *testing.T) {
    cases := []struct {
        in          string
        host        string
        registrable string
    }{
        {"example.com", "example.com", "example.com"},
        {"  WWW.Example.COM. ", "www.example.com", "example.com"},
        {"https://shop.example.co.uk/cart?id=1", "shop.example.co.uk", "example.co.uk"},
        {"mail.example.org:587", "mail.example.org", "example.org"},
        {"10.0.0.1", "10.0.0.1", "10.0.0.1"},
        {"[2001:db8::1]", "2001:db8::1", "2001:db8::1"},
        {"localhost", "localhost", "localhost"},
    }
    for _, tc := range cases {
        t.Run(tc.in, func(t *testing.T) {
            host, registrable, err := NormalizeTarget(tc.in)
            require.NoError(t, err)
            assert.Equal(t, tc.host, host)
            assert.Equal(t, tc.registrable, registrable)
        })
    }
}

func TestNormalizeTargetRejects(t *testing.T) {
    for _, in := range []string{"", "\t", "a b", "https://", "scan://:80", "http://%zz"} {
        _, _, err := NormalizeTarget(in)
        assert.ErrorIs(t, err, domain.ErrInvalidInput, "input %q", in)
    }
}

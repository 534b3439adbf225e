package otp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{"plain six digits", "123456", "123456", nil},
		{"code in sentence", "Your verification code: 482913. It expires soon.", "482913", nil},
		{"prefers longest", "Ref 1234, code 87654321", "87654321", nil},
		{"first on ties", "1111 then 2222", "1111", nil},
		{"ignores short runs", "pin 12 code 9876", "9876", nil},
		{"takes leading digits of long runs", "order 1234567890", "12345678", nil},
		{"long run split, longer part wins", "id 123456789012", "12345678", nil},
		{"no digits", "nothing here", "", ErrNoCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCode(t *testing.T) {
	for _, code := range []string{"1234", "123456", "12345678"} {
		assert.NoError(t, ValidateCode(code), code)
	}
	for _, code := range []string{"", "123", "123456789", "12a456", " 1234"} {
		assert.ErrorIs(t, ValidateCode(code), ErrInvalidCode, code)
	}
}

func TestParseKind(t *testing.T) {
	for word, want := range map[string]Kind{
		"EMAIL": KindEmail, "sms": KindSMS, "Clipboard": KindClipboard, "FILE": KindFile,
	} {
		got, err := ParseKind(word)
		require.NoError(t, err, word)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("MANUAL")
	assert.Error(t, err)
	_, err = ParseKind("pigeon")
	assert.ErrorContains(t, err, "unknown otp source")
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads and extracts", func(t *testing.T) {
		path := filepath.Join(dir, "otp.txt")
		require.NoError(t, os.WriteFile(path, []byte("  Your code is 654321\n"), 0o600))

		code, err := File{Path: path}.Code(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "654321", code)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := File{Path: filepath.Join(dir, "absent.txt")}.Code(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("no code in file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		require.NoError(t, os.WriteFile(path, []byte("no code"), 0o600))

		_, err := File{Path: path}.Code(context.Background())
		assert.ErrorIs(t, err, ErrNoCode)
	})
}

func TestClipboardProvider(t *testing.T) {
	t.Run("falls back to second linux reader", func(t *testing.T) {
		var calls []string
		c := Clipboard{
			GOOS: "linux",
			Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
				calls = append(calls, name)
				if name == "xclip" {
					return nil, errors.New("xclip: not found")
				}
				return []byte("code 2468\n"), nil
			},
		}

		code, err := c.Code(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2468", code)
		assert.Equal(t, []string{"xclip", "xsel"}, calls)
	})

	t.Run("all readers fail", func(t *testing.T) {
		c := Clipboard{
			GOOS: "linux",
			Run: func(context.Context, string, ...string) ([]byte, error) {
				return nil, errors.New("no display")
			},
		}
		_, err := c.Code(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "xclip: no display")
		assert.Contains(t, err.Error(), "xsel: no display")
	})

	t.Run("darwin uses pbpaste", func(t *testing.T) {
		c := Clipboard{
			GOOS: "darwin",
			Run: func(_ context.Context, name string, _ ...string) ([]byte, error) {
				assert.Equal(t, "pbpaste", name)
				return []byte("99887766"), nil
			},
		}
		code, err := c.Code(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "99887766", code)
	})

	t.Run("unknown platform", func(t *testing.T) {
		_, err := Clipboard{GOOS: "plan9"}.Code(context.Background())
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestResolver(t *testing.T) {
	r := NewResolver(zaptest.NewLogger(t))

	code, err := r.Resolve(context.Background(), Source{Kind: KindManual, Code: "1357"})
	require.NoError(t, err)
	assert.Equal(t, "1357", code)

	_, err = r.Resolve(context.Background(), Source{Kind: KindManual, Code: "12"})
	assert.ErrorIs(t, err, ErrInvalidCode)

	for _, kind := range []Kind{KindEmail, KindSMS} {
		_, err := r.Resolve(context.Background(), Source{Kind: kind})
		assert.ErrorIs(t, err, ErrUnsupported, kind)
	}

	r.Clipboard = Clipboard{GOOS: "windows", Run: func(context.Context, string, ...string) ([]byte, error) {
		return []byte("112233\r\n"), nil
	}}
	code, err = r.Resolve(context.Background(), Source{Kind: KindClipboard})
	require.NoError(t, err)
	assert.Equal(t, "112233", code)
}

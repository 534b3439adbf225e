package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"bare words", "CLICK #submit", []string{"CLICK", "#submit"}},
		{"double quotes keep inner whitespace", `TYPE "#selector" "hello world"`, []string{"TYPE", "#selector", "hello world"}},
		{"single quotes", `TYPE '#name' 'Jane  Doe'`, []string{"TYPE", "#name", "Jane  Doe"}},
		{"other quote inside quotes", `EXPECT TITLE CONTAINS "it's here"`, []string{"EXPECT", "TITLE", "CONTAINS", "it's here"}},
		{"tabs separate", "WAIT\t2", []string{"WAIT", "2"}},
		{"repeated separators", "OPEN   \t  https://example.com", []string{"OPEN", "https://example.com"}},
		{"selector with attribute quotes", `CLICK 'input[type="text"]'`, []string{"CLICK", `input[type="text"]`}},
		{"quoted run joins adjacent text", `CLICK btn"-primary"`, []string{"CLICK", "btn-primary"}},
		{"unterminated quote runs to end", `TYPE #a "open ended`, []string{"TYPE", "#a", "open ended"}},
		{"empty quotes give empty token", `TYPE #a ""`, []string{"TYPE", "#a", ""}},
		{"empty line", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.line))
		})
	}
}

func TestTokenizeStripsQuotesOnce(t *testing.T) {
	// Only the outer pair is consumed; the inner pair is content.
	assert.Equal(t, []string{`"inner"`}, Tokenize(`'"inner"'`))
}

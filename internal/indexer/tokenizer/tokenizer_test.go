package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"whitespace only", " \t\n  \r ", []string{}},
		{"words lower-cased", "Hello WORLD", []string{"hello", "world"}},
		{"apostrophe stays in word", "Plato's Republic, 2nd ed.", []string{"plato's", "republic", ",", "2nd", "ed", "."}},
		{"leading apostrophe is punctuation", "'tis", []string{"'", "tis"}},
		{"digits split", "123", []string{"1", "2", "3"}},
		{"number absorbs dot and letters", "3.14", []string{"3.", "1", "4"}},
		{"number keeps case", "4TH", []string{"4TH"}},
		{"punctuation runs split", "?!-", []string{"?", "!", "-"}},
		{"unicode letters", "Ångström über", []string{"ångström", "über"}},
		{"non-ascii punctuation", "a§b", []string{"a", "§", "b"}},
		{"devanagari vowel signs stay in word", "हिंदी भाषा", []string{"हिंदी", "भाषा"}},
		{"roman numeral is a word", "Book Ⅻ", []string{"book", "ⅻ"}},
		{"number absorbs combining mark", "2ं", []string{"2ं"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestTokenizeIsRepeatable(t *testing.T) {
	text := "The Republic, Book VII: the allegory of the cave (514a)."
	assert.Equal(t, Tokenize(text), Tokenize(text))
}

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Socrates: And now, I said, let me show in a figure how far our nature
        is enlightened or unenlightened. Behold! human beings living in an
        underground den, which has a mouth open towards the light and reaching
        all along the den; here they have been from their childhood.`,
	"long": strings.Repeat(`It is the 3rd book of the 2nd edition, printed in 1871; the
        translator's notes run to 14.5 pages. Glaucon: You have shown me a strange
        image, and they are strange prisoners. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

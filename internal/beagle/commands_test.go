package beagle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_Marshal(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"bare verb", InfoCommand(), "INFO"},
		{"getpartner", GetPartnerCommand(), "GETPARTNER"},
		{"partner", SetPartnerCommand("ABC"), "PARTNER ID=ABC"},
		{"getbooks", GetBooksCommand(), "GETBOOKS"},
		{"delete", DeleteBookCommand("ABC"), "DELETEBOOK ID=ABC"},
		{"virgin", VirginCommand(), "VIRGIN"},
		{"book", BookCommand("0011"), "BOOK ID=0011"},
		{"title", TitleCommand("Moby Dick"), "TITLE TW9ieSBEaWNr"},
		{"author", AuthorCommand("Herman Melville"), "AUTHOR SGVybWFuIE1lbHZpbGxl"},
		{"empty title keeps slot", TitleCommand(""), "TITLE "},
		{"page", PageCommand(12), "PAGE 12"},
		{"utility page", UtilityPageCommand(0), "UTILITYPAGE 0"},
		{"endbook", EndBookCommand(), "ENDBOOK"},
		{"several fields", Command{Verb: "X", Fields: []Field{{"A", "1"}, {"B", "2"}}}, "X A=1 B=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Marshal()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestCommand_MarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"empty verb", Command{}},
		{"verb with space", Command{Verb: "GET BOOKS"}},
		{"args and fields", Command{Verb: "X", Args: []string{"1"}, Fields: []Field{{"A", "1"}}}},
		{"arg with space", Command{Verb: "X", Args: []string{"a b"}}},
		{"arg with newline", Command{Verb: "X", Args: []string{"a\nb"}}},
		{"empty key", Command{Verb: "X", Fields: []Field{{"", "1"}}}},
		{"key with equals", Command{Verb: "X", Fields: []Field{{"A=B", "1"}}}},
		{"value with space", Command{Verb: "X", Fields: []Field{{"A", "1 2"}}}},
		{"value with equals", Command{Verb: "X", Fields: []Field{{"A", "1=2"}}}},
		{"value with newline", SetPartnerCommand("AB\nINFO")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cmd.Marshal()
			assert.Error(t, err)
		})
	}
}

func TestText_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "plain", "Ünïcødé 📖", "with = and spaces"} {
		got, err := DecodeText(EncodeText(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestDecodeText_Unpadded(t *testing.T) {
	got, err := DecodeText("YWI")
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	_, err = DecodeText("!!")
	assert.Error(t, err)
}

func TestParseFields(t *testing.T) {
	verb, fields, err := ParseFields(VerbInfo, "DEVICE SERIAL=1 NOTE=a=b EMPTY=")
	require.NoError(t, err)
	assert.Equal(t, "DEVICE", verb)
	assert.Equal(t, []Field{{"SERIAL", "1"}, {"NOTE", "a=b"}, {"EMPTY", ""}}, fields)

	verb, fields, err = ParseFields(VerbInfo, "ALONE")
	require.NoError(t, err)
	assert.Equal(t, "ALONE", verb)
	assert.Empty(t, fields)
}

func TestIsComment(t *testing.T) {
	assert.True(t, IsComment("# hello"))
	assert.True(t, IsComment("#"))
	assert.False(t, IsComment(" # not at start"))
	assert.False(t, IsComment("INFOOK"))
}

func TestNewPartnerID(t *testing.T) {
	a, err := NewPartnerID()
	require.NoError(t, err)
	b, err := NewPartnerID()
	require.NoError(t, err)

	assert.Len(t, a, IDLen)
	assert.NotEqual(t, a, b)
	got, err := NormalizeID(a)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestNormalizeID(t *testing.T) {
	got, err := NormalizeID(" 00112233445566778899aabbccddeeff ")
	require.NoError(t, err)
	assert.Equal(t, "00112233445566778899AABBCCDDEEFF", got)

	_, err = NormalizeID("ABC")
	assert.Error(t, err)
	_, err = NormalizeID("ZZ112233445566778899AABBCCDDEEFF")
	assert.Error(t, err)
}

func TestCleanID(t *testing.T) {
	got, err := CleanID(" 3a4f00001234abcd\n")
	require.NoError(t, err)
	assert.Equal(t, "3A4F00001234ABCD", got, "any length the device listed is accepted")

	for _, id := range []string{"", "   ", "A B", "A=B", "A\rB"} {
		_, err := CleanID(id)
		assert.Error(t, err, "id %q", id)
	}
}

package beagle

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field is one KEY=VALUE token of a command line.
type Field struct {
	Key   string
	Value string
}

// Command is a verb followed by either positional arguments or a list of
// fields. There is no escaping on the wire: keys, values and
// arguments must not contain spaces or line breaks, and neither keys nor
// values may contain '='.
type Command struct {
	Verb   string
	Args   []string
	Fields []Field
}

// Marshal renders the command as one line without the trailing newline.
func (c Command) Marshal() (string, error) {
	if c.Verb == "" || strings.ContainsAny(c.Verb, " =\r\n") {
		return "", fmt.Errorf("beagle: invalid verb %q", c.Verb)
	}
	if len(c.Args) > 0 && len(c.Fields) > 0 {
		return "", errors.New("beagle: command has both arguments and fields")
	}

	var b strings.Builder
	b.WriteString(c.Verb)
	for _, arg := range c.Args {
		if strings.ContainsAny(arg, " \r\n") {
			return "", fmt.Errorf("beagle: %s: argument contains whitespace", c.Verb)
		}
		b.WriteByte(' ')
		b.WriteString(arg)
	}
	for _, f := range c.Fields {
		if f.Key == "" || strings.ContainsAny(f.Key, " =\r\n") {
			return "", fmt.Errorf("beagle: %s: invalid field key %q", c.Verb, f.Key)
		}
		if strings.ContainsAny(f.Value, " =\r\n") {
			return "", fmt.Errorf("beagle: %s: invalid value for %s", c.Verb, f.Key)
		}
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String(), nil
}

func (c Command) String() string {
	s, err := c.Marshal()
	if err != nil {
		return c.Verb
	}
	return s
}

// EncodeText base64-encodes UTF-8 text for TITLE/AUTHOR lines and BOOK fields.
func EncodeText(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeText reverses EncodeText. Unpadded input is accepted.
func DecodeText(s string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return "", err
		}
	}
	return string(data), nil
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// InfoCommand builds INFO.
func InfoCommand() Command { return Command{Verb: VerbInfo} }

// GetPartnerCommand builds GETPARTNER.
func GetPartnerCommand() Command { return Command{Verb: VerbGetPartner} }

// SetPartnerCommand builds PARTNER ID=<id>.
func SetPartnerCommand(id string) Command {
	return Command{Verb: VerbPartner, Fields: []Field{{KeyID, id}}}
}

// GetBooksCommand builds GETBOOKS.
func GetBooksCommand() Command { return Command{Verb: VerbGetBooks} }

// DeleteBookCommand builds DELETEBOOK ID=<id>.
func DeleteBookCommand(id string) Command {
	return Command{Verb: VerbDeleteBook, Fields: []Field{{KeyID, id}}}
}

// VirginCommand builds VIRGIN (factory reset).
func VirginCommand() Command { return Command{Verb: VerbVirgin} }

// BookCommand builds BOOK ID=<id>.
func BookCommand(id string) Command {
	return Command{Verb: VerbBook, Fields: []Field{{KeyID, id}}}
}

// TitleCommand builds TITLE <base64(title)>.
func TitleCommand(title string) Command {
	return Command{Verb: VerbTitle, Args: []string{EncodeText(title)}}
}

// AuthorCommand builds AUTHOR <base64(author)>.
func AuthorCommand(author string) Command {
	return Command{Verb: VerbAuthor, Args: []string{EncodeText(author)}}
}

// PageCommand builds PAGE <index>. The compressed page follows on the wire.
func PageCommand(index int) Command {
	return Command{Verb: VerbPage, Args: []string{strconv.Itoa(index)}}
}

// UtilityPageCommand builds UTILITYPAGE <index>. The compressed page follows.
func UtilityPageCommand(index int) Command {
	return Command{Verb: VerbUtilityPage, Args: []string{strconv.Itoa(index)}}
}

// EndBookCommand builds ENDBOOK.
func EndBookCommand() Command { return Command{Verb: VerbEndBook} }

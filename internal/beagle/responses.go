package beagle

import (
	"strconv"
	"strings"
)

// IsComment reports whether a response line is a device comment.
func IsComment(line string) bool {
	return strings.HasPrefix(line, CommentPrefix)
}

// ParseFields splits a response line into its leading token and the
// KEY=VALUE fields after it. The value is everything after the first '='.
func ParseFields(command, line string) (string, []Field, error) {
	parts := strings.Split(line, " ")
	fields := make([]Field, 0, len(parts)-1)
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return "", nil, &ProtocolError{Command: command, Line: line, Reason: "field without '=': " + part}
		}
		fields = append(fields, Field{Key: key, Value: value})
	}
	return parts[0], fields, nil
}

// ParseInfoLine adds the fields of one INFO response line to info as
// "SECTION.key" entries.
func ParseInfoLine(line string, info Info) error {
	section, fields, err := ParseFields(VerbInfo, line)
	if err != nil {
		return err
	}
	for _, f := range fields {
		info[section+"."+f.Key] = f.Value
	}
	return nil
}

// ParsePartnerResponse parses the reply to GETPARTNER. ok is false when the
// device has no partner.
func ParsePartnerResponse(line string) (id string, ok bool, err error) {
	if line == TokenNoPartner {
		return "", false, nil
	}
	const prefix = VerbPartner + " " + KeyID + "="
	if !strings.HasPrefix(line, prefix) {
		return "", false, &ProtocolError{Command: VerbGetPartner, Line: line}
	}
	return line[len(prefix):], true, nil
}

// ParseBookLine parses one BOOK line of a GETBOOKS listing. Unknown keys are
// ignored; author and title are decoded from base64.
func ParseBookLine(line string) (Book, error) {
	verb, fields, err := ParseFields(VerbGetBooks, line)
	if err != nil {
		return Book{}, err
	}
	if verb != VerbBook {
		return Book{}, &ProtocolError{Command: VerbGetBooks, Line: line}
	}

	var b Book
	for _, f := range fields {
		switch f.Key {
		case KeyID:
			b.ID = f.Value
		case KeyFirstPage, KeyLastPage, KeyCurrentPage:
			n, err := strconv.ParseUint(f.Value, 10, 32)
			if err != nil {
				return Book{}, &ProtocolError{Command: VerbGetBooks, Line: line, Reason: "bad " + f.Key}
			}
			switch f.Key {
			case KeyFirstPage:
				b.FirstPage = uint32(n)
			case KeyLastPage:
				b.LastPage = uint32(n)
			default:
				b.CurrentPage = uint32(n)
			}
		case KeyAuthor, KeyTitle:
			text, err := DecodeText(f.Value)
			if err != nil {
				return Book{}, &ProtocolError{Command: VerbGetBooks, Line: line, Reason: "bad " + f.Key}
			}
			if f.Key == KeyAuthor {
				b.Author = text
			} else {
				b.Title = text
			}
		}
	}
	return b, nil
}

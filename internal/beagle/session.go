package beagle

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"
)

// Session is the typed command set of the device plus the book upload
// state machine (Idle -> BookOpen -> Idle).
//
// A Session must be used by one goroutine at a time.
type Session struct {
	link  *Link
	state State
	book  BookMeta
}

// NewSession starts a session over a connected byte stream.
func NewSession(rw io.ReadWriter) *Session {
	return &Session{link: NewLink(rw)}
}

// State returns the current upload state.
func (s *Session) State() State { return s.state }

// OpenedBook returns the book being uploaded, if any.
func (s *Session) OpenedBook() (BookMeta, bool) {
	return s.book, s.state == StateBookOpen
}

// send checks ctx, then writes one command line.
func (s *Session) send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return &CancelledError{Err: err}
	}
	line, err := cmd.Marshal()
	if err != nil {
		return err
	}
	return s.link.WriteCommand(line)
}

// readResponse returns the next non-comment line.
func (s *Session) readResponse() (string, error) {
	for {
		line, err := s.link.ReadLine()
		if err != nil {
			return "", err
		}
		if IsComment(line) {
			continue
		}
		return line, nil
	}
}

// expect reads one response and requires it to be token.
func (s *Session) expect(verb, token string) error {
	line, err := s.readResponse()
	if err != nil {
		return err
	}
	if line != token {
		return &ProtocolError{Command: verb, Line: line}
	}
	return nil
}

// roundTrip sends cmd and requires token as the single reply.
func (s *Session) roundTrip(ctx context.Context, cmd Command, token string) error {
	if err := s.send(ctx, cmd); err != nil {
		return err
	}
	return s.expect(cmd.Verb, token)
}

// Info queries firmware, device and protocol information.
func (s *Session) Info(ctx context.Context) (Info, error) {
	if err := s.send(ctx, InfoCommand()); err != nil {
		return nil, err
	}
	info := make(Info)
	for {
		line, err := s.readResponse()
		if err != nil {
			return nil, err
		}
		if line == TokenInfoOK {
			return info, nil
		}
		if err := ParseInfoLine(line, info); err != nil {
			return nil, err
		}
	}
}

// PartnerID returns the partner id stored on the device. ok is false when
// the device reports NOPARTNER.
func (s *Session) PartnerID(ctx context.Context) (id string, ok bool, err error) {
	if err := s.send(ctx, GetPartnerCommand()); err != nil {
		return "", false, err
	}
	line, err := s.readResponse()
	if err != nil {
		return "", false, err
	}
	return ParsePartnerResponse(line)
}

// SetPartnerID stores a partner id on the device.
func (s *Session) SetPartnerID(ctx context.Context, id string) error {
	return s.roundTrip(ctx, SetPartnerCommand(id), TokenPartnerOK)
}

// ListBooks returns the books stored on the device.
func (s *Session) ListBooks(ctx context.Context) ([]Book, error) {
	if err := s.send(ctx, GetBooksCommand()); err != nil {
		return nil, err
	}
	var books []Book
	for {
		line, err := s.readResponse()
		if err != nil {
			return nil, err
		}
		if line == TokenGetBooksOK {
			return books, nil
		}
		b, err := ParseBookLine(line)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
}

// DeleteBook removes a book. A refusal by the device is ErrDeleteRefused.
func (s *Session) DeleteBook(ctx context.Context, id string) error {
	if err := s.send(ctx, DeleteBookCommand(id)); err != nil {
		return err
	}
	line, err := s.readResponse()
	if err != nil {
		return err
	}
	switch line {
	case TokenDeleteBookOK:
		log.Info().Str("id", id).Msg("book deleted")
		return nil
	case TokenDeleteBookErr:
		return ErrDeleteRefused
	default:
		return &ProtocolError{Command: VerbDeleteBook, Line: line}
	}
}

// Virgin performs a factory reset, deleting all books.
func (s *Session) Virgin(ctx context.Context) error {
	if err := s.roundTrip(ctx, VirginCommand(), TokenVirginOK); err != nil {
		return err
	}
	log.Warn().Msg("device reset to factory state")
	return nil
}

// OpenBook announces a new book. All three steps must succeed for the
// session to enter BookOpen; otherwise it stays Idle.
func (s *Session) OpenBook(ctx context.Context, meta BookMeta) error {
	if s.state != StateIdle {
		return &StateError{Op: "open book", State: s.state}
	}
	steps := []struct {
		cmd   Command
		token string
	}{
		{BookCommand(meta.ID), TokenBookOK},
		{TitleCommand(meta.Title), TokenTitleOK},
		{AuthorCommand(meta.Author), TokenAuthorOK},
	}
	for _, step := range steps {
		if err := s.roundTrip(ctx, step.cmd, step.token); err != nil {
			return err
		}
	}
	s.state = StateBookOpen
	s.book = meta
	log.Info().Str("id", meta.ID).Str("title", meta.Title).Str("author", meta.Author).Msg("book opened")
	return nil
}

// SendPage uploads one compressed page of the open book. It is rejected
// without touching the link unless a book is open.
func (s *Session) SendPage(ctx context.Context, index int, page []byte) error {
	if s.state != StateBookOpen {
		return &StateError{Op: "send page", State: s.state}
	}
	return s.sendPage(ctx, PageCommand(index), page)
}

// SendUtilityPage uploads a utility page. It does not depend on book state.
func (s *Session) SendUtilityPage(ctx context.Context, index int, page []byte) error {
	return s.sendPage(ctx, UtilityPageCommand(index), page)
}

func (s *Session) sendPage(ctx context.Context, cmd Command, page []byte) error {
	if err := s.send(ctx, cmd); err != nil {
		return err
	}
	if err := s.link.WriteBinary(page); err != nil {
		return err
	}
	return s.expect(cmd.Verb, TokenPageOK)
}

// EndBook closes the open book. On failure the book stays open so EndBook
// can be issued again.
func (s *Session) EndBook(ctx context.Context) error {
	if s.state != StateBookOpen {
		return &StateError{Op: "end book", State: s.state}
	}
	if err := s.roundTrip(ctx, EndBookCommand(), TokenEndBookOK); err != nil {
		return err
	}
	log.Info().Str("id", s.book.ID).Msg("book closed")
	s.state = StateIdle
	s.book = BookMeta{}
	return nil
}

// Abandon forgets the open book without telling the device. The device is
// left in whatever state the last acknowledged command implies.
func (s *Session) Abandon() {
	if s.state == StateBookOpen {
		log.Warn().Str("id", s.book.ID).Msg("book upload abandoned")
	}
	s.state = StateIdle
	s.book = BookMeta{}
}

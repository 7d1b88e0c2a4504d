// Package beagletest provides an in-memory e-reader that speaks the beagle
// line protocol, for tests of code that drives a Session.
package beagletest

import (
	"bufio"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mzyy94/airbeagle/internal/beagle"
	"github.com/mzyy94/airbeagle/internal/raster"
)

// Device is a simulated e-reader. The zero value is not usable; call New.
type Device struct {
	mu sync.Mutex

	partner  string
	books    map[string]beagle.Book
	refuse   map[string]bool
	utility  map[int]int
	commands []string

	open     *beagle.Book
	openSize int
	failPage int
	failEnd  int
	conns    int
}

// New returns an empty device with no partner and no books.
func New() *Device {
	return &Device{
		books:    make(map[string]beagle.Book),
		refuse:   make(map[string]bool),
		utility:  make(map[int]int),
		failPage: -1,
	}
}

// AddBook stores b as if it had been uploaded earlier.
func (d *Device) AddBook(b beagle.Book) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.books[b.ID] = b
}

// RefuseDelete makes DELETEBOOK of id answer DELETEBOOKERROR.
func (d *Device) RefuseDelete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refuse[id] = true
}

// FailPage makes PAGE index answer PAGEERROR.
func (d *Device) FailPage(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPage = index
}

// FailEndBook makes the next n ENDBOOK commands answer ENDBOOKERROR. The
// open book is kept, as a device that could not store it would.
func (d *Device) FailEndBook(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failEnd = n
}

// Books returns the stored books ordered by id.
func (d *Device) Books() []beagle.Book {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sortedBooks()
}

func (d *Device) sortedBooks() []beagle.Book {
	out := make([]beagle.Book, 0, len(d.books))
	for _, b := range d.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Partner returns the stored partner id.
func (d *Device) Partner() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.partner
}

// UtilityPages returns how many utility pages were stored, by index.
func (d *Device) UtilityPages() map[int]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[int]int, len(d.utility))
	for k, v := range d.utility {
		out[k] = v
	}
	return out
}

// Commands returns every command line received so far.
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// Connections returns how many streams were served.
func (d *Device) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns
}

// Pipe starts serving one end of an in-memory pipe and returns the other.
func (d *Device) Pipe() net.Conn {
	host, dev := net.Pipe()
	go func() {
		_ = d.Serve(dev)
		dev.Close()
	}()
	return host
}

// Dial matches the signature used to open device transports.
func (d *Device) Dial(ctx context.Context, addr string, baud int) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Pipe(), nil
}

// Serve answers commands on rw until it is closed.
func (d *Device) Serve(rw io.ReadWriter) error {
	d.mu.Lock()
	d.conns++
	d.mu.Unlock()

	r := bufio.NewReader(rw)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		reply, err := d.handle(line, r)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(rw, reply); err != nil {
			return err
		}
	}
}

func (d *Device) handle(line string, r *bufio.Reader) (string, error) {
	verb, rest, _ := strings.Cut(line, " ")

	// Payload first: the page must be consumed before the lock is taken.
	var size int
	var readErr error
	if verb == beagle.VerbPage || verb == beagle.VerbUtilityPage {
		size, readErr = readPage(r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, line)

	field := func(key string) string {
		for _, part := range strings.Fields(rest) {
			if k, v, ok := strings.Cut(part, "="); ok && k == key {
				return v
			}
		}
		return ""
	}

	switch verb {
	case beagle.VerbInfo:
		return "# simulated device\n" +
			"FIRMWARE GIT=sim ID=1\n" +
			"DEVICE SERIAL=SIM0001 DISPLAY=600x800\n" +
			"PROTOCOL VERSION=1\n" +
			beagle.TokenInfoOK + "\n", nil

	case beagle.VerbGetPartner:
		if d.partner == "" {
			return beagle.TokenNoPartner + "\n", nil
		}
		return "PARTNER ID=" + d.partner + "\n", nil

	case beagle.VerbPartner:
		d.partner = field(beagle.KeyID)
		return beagle.TokenPartnerOK + "\n", nil

	case beagle.VerbGetBooks:
		var b strings.Builder
		for _, book := range d.sortedBooks() {
			fmt.Fprintf(&b, "BOOK ID=%s FIRSTPAGE=%d LASTPAGE=%d CURRENTPAGE=%d AUTHOR=%s TITLE=%s\n",
				book.ID, book.FirstPage, book.LastPage, book.CurrentPage,
				beagle.EncodeText(book.Author), beagle.EncodeText(book.Title))
		}
		b.WriteString(beagle.TokenGetBooksOK + "\n")
		return b.String(), nil

	case beagle.VerbDeleteBook:
		id := field(beagle.KeyID)
		if _, ok := d.books[id]; !ok || d.refuse[id] {
			return beagle.TokenDeleteBookErr + "\n", nil
		}
		delete(d.books, id)
		return beagle.TokenDeleteBookOK + "\n", nil

	case beagle.VerbVirgin:
		d.books = make(map[string]beagle.Book)
		d.partner = ""
		return beagle.TokenVirginOK + "\n", nil

	case beagle.VerbBook:
		d.open = &beagle.Book{ID: field(beagle.KeyID)}
		d.openSize = 0
		return beagle.TokenBookOK + "\n", nil

	case beagle.VerbTitle, beagle.VerbAuthor:
		if d.open == nil {
			return "ERROR\n", nil
		}
		text, err := beagle.DecodeText(rest)
		if err != nil {
			return "ERROR\n", nil
		}
		if verb == beagle.VerbTitle {
			d.open.Title = text
			return beagle.TokenTitleOK + "\n", nil
		}
		d.open.Author = text
		return beagle.TokenAuthorOK + "\n", nil

	case beagle.VerbPage, beagle.VerbUtilityPage:
		if readErr != nil {
			return "", readErr
		}
		index, err := strconv.Atoi(rest)
		if err != nil || size != raster.RawSize {
			return "PAGEERROR\n", nil
		}
		if verb == beagle.VerbUtilityPage {
			d.utility[index]++
			return beagle.TokenPageOK + "\n", nil
		}
		if d.open == nil || index == d.failPage {
			return "PAGEERROR\n", nil
		}
		d.openSize++
		return beagle.TokenPageOK + "\n", nil

	case beagle.VerbEndBook:
		if d.open == nil {
			return "ERROR\n", nil
		}
		if d.failEnd > 0 {
			d.failEnd--
			return "ENDBOOKERROR\n", nil
		}
		book := *d.open
		if d.openSize > 0 {
			book.LastPage = uint32(d.openSize - 1)
		}
		d.books[book.ID] = book
		d.open = nil
		return beagle.TokenEndBookOK + "\n", nil

	default:
		return "ERROR\n", nil
	}
}

// readPage consumes exactly one compressed page from r and returns the size
// of the raster it holds. The end of the page is found from the compressed
// stream itself: the flate reader takes bytes from r one at a time and stops
// at the end of the member.
func readPage(r *bufio.Reader) (int, error) {
	magic, err := r.Peek(1)
	if err != nil {
		return 0, err
	}
	var zr io.ReadCloser
	if magic[0] == 0x1f {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return 0, err
		}
		gz.Multistream(false)
		zr = gz
	} else {
		zr, err = zlib.NewReader(r)
		if err != nil {
			return 0, err
		}
	}
	defer zr.Close()
	n, err := io.Copy(io.Discard, zr)
	return int(n), err
}

package beagle

import (
	"sort"
	"strings"
)

// State is the upload state of a Session.
type State int

const (
	StateIdle State = iota
	StateBookOpen
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBookOpen:
		return "book-open"
	default:
		return "unknown"
	}
}

// Book is a book stored on the device.
// FirstPage <= CurrentPage <= LastPage is device state and is not validated.
type Book struct {
	ID          string `json:"id"`
	FirstPage   uint32 `json:"firstPage"`
	LastPage    uint32 `json:"lastPage"`
	CurrentPage uint32 `json:"currentPage"`
	Author      string `json:"author"`
	Title       string `json:"title"`
}

func (b Book) String() string {
	if b.Author == "" {
		return b.Title
	}
	return b.Author + ": " + b.Title
}

// BookMeta identifies a book being uploaded.
type BookMeta struct {
	ID     string
	Title  string
	Author string
}

// Info holds device information keyed "SECTION.key", for example
// FIRMWARE.GIT, DEVICE.SERIAL or PROTOCOL.VERSION.
type Info map[string]string

// Get returns the value of key in section.
func (i Info) Get(section, key string) (string, bool) {
	v, ok := i[section+"."+key]
	return v, ok
}

// Keys returns all keys in sorted order.
func (i Info) Keys() []string {
	keys := make([]string, 0, len(i))
	for k := range i {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sections returns the distinct section names in sorted order.
func (i Info) Sections() []string {
	seen := make(map[string]bool)
	var out []string
	for k := range i {
		section, _, _ := strings.Cut(k, ".")
		if !seen[section] {
			seen[section] = true
			out = append(out, section)
		}
	}
	sort.Strings(out)
	return out
}

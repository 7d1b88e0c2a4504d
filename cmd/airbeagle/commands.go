package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/mzyy94/airbeagle/internal/beagle"
	"github.com/mzyy94/airbeagle/internal/config"
	"github.com/mzyy94/airbeagle/internal/device"
	"github.com/mzyy94/airbeagle/internal/preview"
	"github.com/mzyy94/airbeagle/internal/render"
	"github.com/mzyy94/airbeagle/internal/transport"
	"github.com/mzyy94/airbeagle/internal/upload"
)

func newFlags(e *env, name string, g *globals) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	g.register(fs)
	return fs
}

// parse parses args and resolves settings. want is the number of positional
// arguments required; -1 means at least one.
func parse(fs *pflag.FlagSet, g *globals, args []string, want int) (config.Settings, error) {
	if err := fs.Parse(args); err != nil {
		return config.Settings{}, err
	}
	switch n := fs.NArg(); {
	case want < 0 && n == 0:
		return config.Settings{}, fmt.Errorf("%w: %s needs at least one argument", errUsage, fs.Name())
	case want >= 0 && n != want:
		return config.Settings{}, fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, fs.Name(), want, n)
	}
	return g.settings(fs)
}

// withDevice runs fn on a device opened from s and closes it afterwards.
func withDevice(ctx context.Context, s config.Settings, fn func(*device.Device) error) error {
	dev := device.New(s.Device, s.Baud)
	defer func() {
		if err := dev.Disconnect(); err != nil {
			log.Debug().Err(err).Msg("disconnect")
		}
	}()
	return fn(dev)
}

func runInfo(ctx context.Context, e *env, args []string) error {
	var g globals
	fs := newFlags(e, "info", &g)
	s, err := parse(fs, &g, args, 0)
	if err != nil {
		return err
	}
	return withDevice(ctx, s, func(dev *device.Device) error {
		info, err := dev.Info(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
		for _, k := range info.Keys() {
			fmt.Fprintf(tw, "%s\t%s\n", k, info[k])
		}
		return tw.Flush()
	})
}

func runPorts(ctx context.Context, e *env, args []string) error {
	var g globals
	fs := newFlags(e, "ports", &g)
	if _, err := parse(fs, &g, args, 0); err != nil {
		return err
	}
	ports, err := transport.Ports()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Fprintln(e.stdout, p)
	}
	return nil
}

func runPartner(ctx context.Context, e *env, args []string) error {
	var g globals
	fs := newFlags(e, "partner", &g)
	set := fs.String("set", "", "store this partner id")
	generate := fs.Bool("generate", false, "store a new random partner id")
	s, err := parse(fs, &g, args, 0)
	if err != nil {
		return err
	}
	if *set != "" && *generate {
		return fmt.Errorf("%w: --set and --generate are exclusive", errUsage)
	}

	id := *set
	switch {
	case *generate:
		if id, err = beagle.NewPartnerID(); err != nil {
			return err
		}
	case id != "":
		if id, err = beagle.NormalizeID(id); err != nil {
			return err
		}
	}

	return withDevice(ctx, s, func(dev *device.Device) error {
		if id != "" {
			if err := dev.SetPartnerID(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(e.stdout, id)
			return nil
		}
		current, ok, err := dev.PartnerID(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(e.stdout, "no partner")
			return nil
		}
		fmt.Fprintln(e.stdout, current)
		return nil
	})
}

func runBooks(ctx context.Context, e *env, args []string) error {
	var g globals
	fs := newFlags(e, "books", &g)
	s, err := parse(fs, &g, args, 0)
	if err != nil {
		return err
	}
	return withDevice(ctx, s, func(dev *device.Device) error {
		books, err := dev.Books(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPAGE\tAUTHOR\tTITLE")
		for _, b := range books {
			fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\n", b.ID, b.CurrentPage, b.LastPage, b.Author, b.Title)
		}
		return tw.Flush()
	})
}

func runDelete(ctx context.Context, e *env, args []string) error {
	var g globals
	fs := newFlags(e, "delete", &g)
	s, err := parse(fs, &g, args, 1)
	if err != nil {
		return err
	}
	id, err := beagle.CleanID(fs.Arg(0))
	if err != nil {
		return err
	}
	return withDevice(ctx, s, func(dev *device.Device) error {
		if err := dev.DeleteBook(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "deleted %s\n", id)
		return nil
	})
}

func runVirgin(ctx context.Context, e *env, args []string) error {
	var g globals
	fs := newFlags(e, "virgin", &g)
	yes := fs.Bool("yes", false, "confirm the factory reset")
	s, err := parse(fs, &g, args, 0)
	if err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("%w: virgin erases every book and the partner id; pass --yes", errUsage)
	}
	return withDevice(ctx, s, func(dev *device.Device) error { return dev.Virgin(ctx) })
}

// bookFlags are shared by upload and preview.
type bookFlags struct {
	title     string
	author    string
	id        string
	bookmarks []int
}

func (b *bookFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&b.title, "title", "", "book title (default: from the first file name)")
	fs.StringVar(&b.author, "author", "", "book author")
	fs.StringVar(&b.id, "id", "", "book id, 32 hex characters (default: derived from author and title)")
	fs.IntSliceVar(&b.bookmarks, "bookmark", nil, "document page numbers to mark on the progress bar")
}

func (b *bookFlags) book(s config.Settings, paths []string) (render.Book, error) {
	src, err := render.Files(paths...)
	if err != nil {
		return render.Book{}, err
	}
	id := b.id
	if id != "" {
		if id, err = beagle.NormalizeID(id); err != nil {
			return render.Book{}, err
		}
	}
	author := b.author
	if strings.TrimSpace(author) == "" {
		author = s.DefaultAuthor
	}
	book := render.NewBook(src, b.title, author, id, paths[0])
	book.Bookmarks = b.bookmarks
	return book, nil
}

func runUpload(ctx context.Context, e *env, args []string) error {
	var g globals
	var bf bookFlags
	fs := newFlags(e, "upload", &g)
	bf.register(fs)
	quiet := fs.BoolP("quiet", "q", false, "do not print progress")
	s, err := parse(fs, &g, args, -1)
	if err != nil {
		return err
	}
	book, err := bf.book(s, fs.Args())
	if err != nil {
		return err
	}
	codec, err := s.Codec()
	if err != nil {
		return err
	}

	progress := func(p upload.Progress) {
		if !*quiet {
			fmt.Fprintf(e.stderr, "\rpage %d/%d  %d KiB", p.Sent, p.Total, p.Bytes/1024)
		}
	}
	return withDevice(ctx, s, func(dev *device.Device) error {
		err := dev.Upload(ctx, book, codec, s.QueueSize, progress)
		if !*quiet {
			fmt.Fprintln(e.stderr)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "uploaded %s %q by %s (%d pages)\n", book.Meta.ID, book.Meta.Title, book.Meta.Author, book.PageCount())
		return nil
	})
}

func runUtility(ctx context.Context, e *env, args []string) error {
	var g globals
	fs := newFlags(e, "utility", &g)
	index := fs.IntP("index", "i", -1, "utility page index")
	s, err := parse(fs, &g, args, 1)
	if err != nil {
		return err
	}
	if *index < 0 {
		return fmt.Errorf("%w: utility needs --index", errUsage)
	}
	img, err := render.LoadImage(fs.Arg(0))
	if err != nil {
		return err
	}
	codec, err := s.Codec()
	if err != nil {
		return err
	}
	return withDevice(ctx, s, func(dev *device.Device) error {
		return dev.SendUtilityPage(ctx, *index, img, codec)
	})
}

func runPreview(ctx context.Context, e *env, args []string) error {
	var g globals
	var bf bookFlags
	fs := newFlags(e, "preview", &g)
	bf.register(fs)
	out := fs.StringP("out", "o", "", "PDF file to write")
	s, err := parse(fs, &g, args, -1)
	if err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: preview needs --out", errUsage)
	}
	book, err := bf.book(s, fs.Args())
	if err != nil {
		return err
	}
	codec, err := s.Codec()
	if err != nil {
		return err
	}
	pages, err := preview.Collect(ctx, book.Producer(codec))
	if err != nil {
		return err
	}
	if err := preview.WritePDF(*out, codec, pages); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s (%d pages)\n", *out, len(pages))
	return nil
}

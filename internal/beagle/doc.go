// Package beagle implements the line protocol of the txtr beagle e-reader.
//
// Requests are single text lines: a verb followed by KEY=VALUE fields or a
// positional argument. The device answers with one or more lines and a
// terminal token. Lines starting with '#' are comments and are skipped.
//
//	>> GETBOOKS
//	<< BOOK ID=... FIRSTPAGE=0 LASTPAGE=9 CURRENTPAGE=3 AUTHOR=<b64> TITLE=<b64>
//	<< GETBOOKSOK
//
// Uploading a book is a small state machine:
//
//	>> BOOK ID=<hex>        << BOOKOK
//	>> TITLE <b64>          << TITLEOK
//	>> AUTHOR <b64>         << AUTHOROK
//	>> PAGE 0, <page bytes> << PAGEOK     (repeated)
//	>> ENDBOOK              << ENDBOOKOK
//
// Page bytes follow the PAGE line directly with no length prefix; see Link.
package beagle

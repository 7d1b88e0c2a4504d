package beagle

// Request verbs.
const (
	VerbInfo        = "INFO"
	VerbGetPartner  = "GETPARTNER"
	VerbPartner     = "PARTNER"
	VerbGetBooks    = "GETBOOKS"
	VerbDeleteBook  = "DELETEBOOK"
	VerbVirgin      = "VIRGIN"
	VerbBook        = "BOOK"
	VerbTitle       = "TITLE"
	VerbAuthor      = "AUTHOR"
	VerbPage        = "PAGE"
	VerbUtilityPage = "UTILITYPAGE"
	VerbEndBook     = "ENDBOOK"
)

// Response tokens.
const (
	TokenInfoOK        = "INFOOK"
	TokenNoPartner     = "NOPARTNER"
	TokenPartnerOK     = "PARTNEROK"
	TokenGetBooksOK    = "GETBOOKSOK"
	TokenDeleteBookOK  = "DELETEBOOKOK"
	TokenDeleteBookErr = "DELETEBOOKERROR"
	TokenVirginOK      = "VIRGINOK"
	TokenBookOK        = "BOOKOK"
	TokenTitleOK       = "TITLEOK"
	TokenAuthorOK      = "AUTHOROK"
	TokenPageOK        = "PAGEOK"
	TokenEndBookOK     = "ENDBOOKOK"
)

// Field keys.
const (
	KeyID          = "ID"
	KeyFirstPage   = "FIRSTPAGE"
	KeyLastPage    = "LASTPAGE"
	KeyCurrentPage = "CURRENTPAGE"
	KeyAuthor      = "AUTHOR"
	KeyTitle       = "TITLE"
)

// CommentPrefix marks response lines the device emits for diagnostics only.
const CommentPrefix = "#"

// IDLen is the length of a book or partner id in hex characters (16 bytes).
// The protocol itself does not enforce it.
const IDLen = 32

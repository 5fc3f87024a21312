package status

// ErrorCode is a numeric code to classify API errors in a stable way
type ErrorCode int

// Reserved ranges by domain:
//   1000-1999: Books (upload/parsing)
//   2000-2999: Chapters (formatting/audio triggers)
//   3000-3999: Jobs
//   4000-4999: Audio files
//   9000-9999: Internal

// Books client/validation errors
const (
	BookInvalidRequest ErrorCode = 1000 + iota // 1000
	BookMissingFile                            // 1001
	BookUnsupportedType                        // 1002
	BookTooLarge                               // 1003
	BookNotFound                               // 1004
	BookNotParsed                              // 1005
)

// Chapters client/validation errors
const (
	ChapterInvalidRequest ErrorCode = 2000 + iota // 2000
	ChapterNotFound                               // 2001
	ChapterNoText                                 // 2002
	ChapterNotFormatted                           // 2003
	ChapterExcluded                               // 2004
)

// Jobs errors
const (
	JobInvalidRequest ErrorCode = 3000 + iota // 3000
	JobNotFound                               // 3001
	JobEnqueueFailed                          // 3002
)

// Audio errors
const (
	AudioInvalidRequest ErrorCode = 4000 + iota // 4000
	AudioNotFound                               // 4001
)

const (
	ErrorCodeInternal ErrorCode = 9000
)

// SuccessCode mirrors ErrorCode for the success envelope
type SuccessCode int

const (
	OK SuccessCode = 200
)

// CodedError represents an error with an associated ErrorCode
type CodedError interface {
	error
	ErrorCode() ErrorCode
}

type codedError struct {
	code ErrorCode
	err  error
}

func (e codedError) Error() string        { return e.err.Error() }
func (e codedError) Unwrap() error        { return e.err }
func (e codedError) ErrorCode() ErrorCode { return e.code }

// New creates a new CodedError with the given code and underlying error
func New(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return codedError{code: code, err: err}
}

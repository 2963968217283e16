package patchweaver

// Delimiters is a pair of nesting delimiter bytes.
type Delimiters struct {
	Open  byte
	Close byte
}

// Common delimiter pairs.
var (
	Braces   = Delimiters{'{', '}'}
	Parens   = Delimiters{'(', ')'}
	Brackets = Delimiters{'[', ']'}
)

// Block is a located balanced-delimiter region.
type Block struct {
	Body  string // text strictly between the opening and closing delimiter
	Span  Span   // byte range of Body within the scanned text
	Close int    // offset of the matching closing delimiter
}

type scanConfig struct {
	quotes []byte
}

// ExtractOption configures the balanced-delimiter scan.
type ExtractOption func(*scanConfig)

// SkipQuoted makes the scan ignore delimiters that occur inside a quoted run
// opened by any of the given quote bytes. A backslash escapes the next byte
// inside a quoted run. Without this option the scan is purely byte-wise and
// a brace inside a string literal counts toward nesting depth.
func SkipQuoted(quotes ...byte) ExtractOption {
	return func(c *scanConfig) { c.quotes = append(c.quotes, quotes...) }
}

// MatchBalanced returns the offset of the closing delimiter matching an
// opening delimiter that has already been consumed: start points at the first
// byte after the opener, so scanning begins at nesting depth 1. Depth goes up
// on every Open and down on every Close; the offset of the Close that brings
// depth to zero is returned.
//
// Reaching the end of text with depth still positive returns an
// *UnbalancedDelimiterError. The function has no side effects.
func MatchBalanced(text string, start int, d Delimiters, opts ...ExtractOption) (int, error) {
	var cfg scanConfig
	for _, o := range opts {
		o(&cfg)
	}

	depth := 1
	i := start
	for i < len(text) {
		c := text[i]
		if q := quoteByte(cfg.quotes, c); q != 0 {
			i = skipQuotedRun(text, i+1, q)
			continue
		}
		switch c {
		case d.Open:
			depth++
		case d.Close:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
		i++
	}
	return 0, &UnbalancedDelimiterError{
		Open:    d.Open,
		Close:   d.Close,
		Start:   PositionAt(text, start),
		Depth:   depth,
		Context: extractContext(text, PositionAt(text, start)),
	}
}

// ExtractBlock runs MatchBalanced and also returns the block body, the text
// between start and the matching closing delimiter.
func ExtractBlock(text string, start int, d Delimiters, opts ...ExtractOption) (Block, error) {
	close, err := MatchBalanced(text, start, d, opts...)
	if err != nil {
		return Block{}, err
	}
	return Block{
		Body:  text[start:close],
		Span:  Span{Start: start, End: close},
		Close: close,
	}, nil
}

// quoteByte reports whether c is one of the configured quote bytes.
func quoteByte(quotes []byte, c byte) byte {
	for _, q := range quotes {
		if c == q {
			return q
		}
	}
	return 0
}

// skipQuotedRun advances past a quoted run opened by q, honoring backslash
// escapes. It returns the offset just after the closing quote, or len(text)
// if the run never closes.
func skipQuotedRun(text string, i int, q byte) int {
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
		case q:
			return i + 1
		default:
			i++
		}
	}
	return i
}

package dictionary

import "embed"

//go:embed base
var baseFS embed.FS

// standardDict is parsed once, lazily, from the embedded baseline
// dictionary and reused by every LoadStandard call; the Dictionary is
// immutable so sharing it across callers is safe.
var standardDict *Dictionary

// LoadStandard returns the baseline RADIUS dictionary compiled into this
// binary: the standard attributes from RFC 2865, 2866, 2869, 3162, 5176,
// and 6929, plus a Microsoft VSA vendor scope as a worked vendor example.
// Daemon configuration loads site-specific dictionaries with Load and
// layers them over this one with Merge.
func LoadStandard() (*Dictionary, error) {
	if standardDict != nil {
		return standardDict, nil
	}
	d, err := LoadFS(baseFS, "base/dictionary")
	if err != nil {
		return nil, err
	}
	standardDict = d
	return d, nil
}

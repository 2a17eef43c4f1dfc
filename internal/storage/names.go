// Package storage holds the naming rules shared by the content store
// backends. Backends live in the local, memory and gcs subpackages.
package storage

import (
	"path"
	"strings"
)

var flatReplacer = strings.NewReplacer(
	"http://", "",
	"https://", "",
	"/", "_",
	":", "",
	"?", "",
)

var keyReplacer = strings.NewReplacer(
	"http://", "",
	"https://", "",
	":", "",
	"?", "",
)

// FileName flattens a URL into a single file name: the scheme is dropped,
// slashes become underscores and ':' and '?' are removed. Text content gets
// an ".html" suffix unless it already has one.
//
//	https://a1/a2/test_file          -> a1_a2_test_file.html
//	http://a1/a2/test?main:file.exe  -> a1_a2_testmainfile.exe.html
func FileName(name, contentType string) string {
	return withHTMLSuffix(flatReplacer.Replace(name), contentType)
}

// ObjectKey maps a URL to an object-store key below prefix. Unlike FileName
// it keeps the path hierarchy; directory-like URLs end in "index".
func ObjectKey(name, contentType, prefix string) string {
	key := strings.TrimLeft(keyReplacer.Replace(name), "/")
	if key == "" || strings.HasSuffix(key, "/") {
		key += "index"
	}
	key = withHTMLSuffix(key, contentType)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return path.Join(prefix, key)
	}
	return key
}

func withHTMLSuffix(name, contentType string) string {
	if strings.HasPrefix(contentType, "text") && !strings.HasSuffix(name, ".html") {
		return name + ".html"
	}
	return name
}

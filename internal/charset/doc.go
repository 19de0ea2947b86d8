// Package charset turns fetched stylesheets and local HTML files into UTF-8
// text. UTF-8 is tried first, then statistical detection, then a fixed list
// of legacy encodings.
package charset

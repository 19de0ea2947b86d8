package model

import (
	"path/filepath"
	"strings"
)

// Category is the kind of localized asset. It decides where the asset is
// stored under the mirror tree and how references to it are rewritten.
//
// The set is closed: css, js, fonts and images.
type Category int

const (
	// CategoryCSS holds stylesheets referenced by <link rel="stylesheet">.
	CategoryCSS Category = iota

	// CategoryJS holds scripts referenced by <script src>.
	CategoryJS

	// CategoryFonts holds fonts referenced from inside stylesheets.
	CategoryFonts

	// CategoryImages holds images referenced from inside stylesheets,
	// including decoded data URIs.
	CategoryImages
)

// Categories lists every category in directory creation order.
var Categories = []Category{CategoryCSS, CategoryJS, CategoryFonts, CategoryImages}

// String returns the category name used in synthetic filenames and logs.
func (c Category) String() string {
	switch c {
	case CategoryCSS:
		return "css"
	case CategoryJS:
		return "js"
	case CategoryFonts:
		return "fonts"
	case CategoryImages:
		return "images"
	default:
		return "unknown"
	}
}

// Subdir returns the directory, relative to the mirror root, that stores
// assets of this category. Fonts live next to the stylesheets that use them.
func (c Category) Subdir() string {
	switch c {
	case CategoryCSS:
		return filepath.Join("static", "css")
	case CategoryJS:
		return filepath.Join("static", "js")
	case CategoryFonts:
		return filepath.Join("static", "css", "fonts")
	case CategoryImages:
		return filepath.Join("static", "images")
	default:
		return "static"
	}
}

// ClassifyExtension maps a file extension found inside a stylesheet
// reference to the category it is stored under. The second result is false
// for extensions that are left untouched.
func ClassifyExtension(ext string) (Category, bool) {
	switch strings.ToLower(ext) {
	case ".woff", ".woff2", ".ttf", ".eot":
		return CategoryFonts, true
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico":
		return CategoryImages, true
	default:
		return 0, false
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

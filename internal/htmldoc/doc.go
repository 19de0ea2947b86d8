// Package htmldoc rewrites the remote stylesheet and script references of
// an HTML document to local copies under ./static/css and ./static/js.
//
// Only absolute http(s) references are localized. Relative stylesheets and
// scripts, <img> elements and inline styles are left as they are.
package htmldoc

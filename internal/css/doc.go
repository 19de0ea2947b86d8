// Package css localizes the assets a downloaded stylesheet references
// through url(...) tokens.
//
// Only fonts (.woff, .woff2, .ttf, .eot) and images (.png, .jpg, .jpeg,
// .gif, .svg, .ico) are downloaded; absolute http(s) references and
// anything unclassified are left as they are. Fonts and images are leaves,
// so resolution never recurses into another stylesheet.
package css

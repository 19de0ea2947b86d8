// Package config holds the options of a localization run and loads the
// optional .localizer configuration file.
package config

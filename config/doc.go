// Package config loads the per-model file configuration: which image and file
// attributes a model has, their authorized extensions, image sizes and the
// storage and public paths.
package config

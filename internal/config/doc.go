// Package config loads the YAML configuration of the bundler command.
//
// The file is named by the --config flag or the BUNDLER_CONFIG environment
// variable. A .env file next to it is loaded first, so secrets such as
// object storage credentials can stay out of the YAML and be referenced as
// ${VAR} or ${VAR:-default}.
//
// The environments section holds per-environment overrides. The active
// environment comes from the --env flag, then BUNDLER_ENV, then the
// environment key of the file.
//
// Key exports:
//
//   - [Config] -- the whole file: paths, bundles, remote, publish
//   - [Default] -- the values used before the file is applied
//   - [Load] and [Parse] -- the entry points
//   - [Config.AssetsConfig] and [Config.Options] -- conversion to the
//     bundler library types
package config

/*
Package bundler concatenates, minifies and fingerprints JavaScript and CSS
assets into single cached files, and renders the HTML tags referencing them.

# Overview

A Provider collects an ordered list of references for one asset kind. Local
references are paths relative to a public root; remote references are
http://, https:// or protocol-relative // URLs. Make turns that list into one
artifact in an output directory:

  - the artifact name is derived from the list itself (the identity) plus,
    optionally, the sum of the files' modification times
  - when an artifact with that name already exists nothing is read or written
  - otherwise every reference is fetched in order, stylesheet url(...)
    targets are rewritten relative to the public root, the result is
    minified, older builds of the same list are purged and the new artifact
    is written atomically

# Basic Usage

Building a script bundle:

	p := bundler.NewScript(bundler.Config{PublicRoot: "public"})
	if err := p.Add("js/app.js", "js/menu.js"); err != nil {
	    log.Fatalf("Failed to add files: %v", err)
	}

	built, err := p.Make(ctx, "build/js")
	if err != nil {
	    log.Fatalf("Failed to build bundle: %v", err)
	}
	fmt.Println(built, p.Filename())

Rendering tags through the Assets facade:

	assets := bundler.NewAssets(bundler.AssetsConfig{
	    PublicRoot: "public",
	    BaseURL:    "https://static.example.com",
	    Script:     bundler.KindPaths{BuildPath: "build/js"},
	})
	html, err := assets.Javascript(ctx, []string{"js/app.js"}, bundler.Attributes{
	    bundler.Flag("defer"),
	})

# Artifact Names

	<identity><mtime-sum>.<ext>

identity is the hex hash of the root-relative references joined by "-" and
followed by the optional salt. The hash is xxHash64 by default; WithHashFunc
selects another. References carry no leading slash, so md5.New uses the
historical algorithm without reproducing historical names. The time sum is
left out with Config.DisableModTime.

# Configuration Options

	p := bundler.NewStylesheet(
	    cfg,
	    bundler.WithFs(afero.NewMemMapFs()),
	    bundler.WithLogger(slog.Default()),
	    bundler.WithHeaders(bundler.HeadersFromRequest(r)),
	    bundler.WithPrecompression(true, true),
	)

# Error Handling

Every failure wraps one of the error kinds:

  - ErrFileNotFound: a local file is missing or a remote fetch failed
  - ErrRemoteFetchFailed: a remote reference could not be retrieved
  - ErrDirectoryNotFound: the output directory is missing and cannot be created
  - ErrDirectoryNotWritable: the output directory rejects new files
  - ErrCannotRemoveFile: a stale artifact cannot be purged
  - ErrCannotSaveFile: the artifact cannot be written

Use errors.Is to branch on them and errors.As to get the *Error with the
path involved.
*/
package bundler

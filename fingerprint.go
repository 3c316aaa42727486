package bundler

import (
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// identitySeparator joins the normalized references before hashing.
const identitySeparator = "-"

// remoteTimeWidth is the number of hex digits of the remote pseudo
// timestamp.
const remoteTimeWidth = 8

// Identity computes the content identity of an ordered list of resolved
// references: the hex hash of their root-relative forms joined by "-" and
// followed by salt. It reads neither the filesystem nor the network.
func Identity(hashFunc HashFunc, root string, files []string, salt string) string {
	root = cleanRoot(root)
	normalized := make([]string, len(files))
	for i, file := range files {
		normalized[i] = relative(root, file)
	}
	return hexDigest(hashFunc, strings.Join(normalized, identitySeparator)+salt)
}

// aggregateModTime sums the modification times (Unix seconds) of local
// files. Remote references contribute a pseudo time derived from their URL
// and the forwarded User-Agent, so the name changes when either does.
func aggregateModTime(fs afero.Fs, hashFunc HashFunc, userAgent string, files []string) (int64, error) {
	var total int64
	for _, file := range files {
		if IsRemote(file) {
			total += remoteModTime(hashFunc, file, userAgent)
			continue
		}
		info, err := fs.Stat(file)
		if err != nil {
			return 0, newError("stat", file, ErrFileNotFound, err)
		}
		total += info.ModTime().Unix()
	}
	return total, nil
}

func remoteModTime(hashFunc HashFunc, ref, userAgent string) int64 {
	digest := hexDigest(hashFunc, ref+userAgent)
	if len(digest) > remoteTimeWidth {
		digest = digest[:remoteTimeWidth]
	}
	n, err := strconv.ParseUint(digest, 16, 64)
	if err != nil {
		return 0
	}
	return int64(n)
}

// artifactName composes identity, optional time sum and extension.
func artifactName(identity string, modTime int64, withModTime bool, extension string) string {
	if !withModTime {
		return identity + extension
	}
	return identity + strconv.FormatInt(modTime, 10) + extension
}

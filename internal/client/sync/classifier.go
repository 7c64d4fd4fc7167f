package sync

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/themesync/internal/theme"
)

// Classify partitions the remote and local checksums. Duplicate remote keys
// resolve to the last entry.
func Classify(remote []theme.Checksum, local map[string]theme.Checksum) Partitions {
	remoteIdx := theme.IndexChecksums(remote)

	remoteKeys := mapset.NewThreadUnsafeSetFromMapKeys(remoteIdx)
	localKeys := mapset.NewThreadUnsafeSetFromMapKeys(local)

	var parts Partitions

	for _, key := range sortedKeys(remoteKeys.Difference(localKeys)) {
		parts.RemoteOnly = append(parts.RemoteOnly, theme.Checksum{Key: key, Checksum: remoteIdx[key].Checksum})
	}

	for _, key := range sortedKeys(localKeys.Difference(remoteKeys)) {
		parts.LocalOnly = append(parts.LocalOnly, theme.Checksum{Key: key, Checksum: local[key].Checksum})
	}

	for _, key := range sortedKeys(remoteKeys.Intersect(localKeys)) {
		if remoteIdx[key].Checksum != local[key].Checksum {
			parts.Conflicting = append(parts.Conflicting, theme.Checksum{Key: key, Checksum: remoteIdx[key].Checksum})
		}
	}

	return parts
}

func sortedKeys(s mapset.Set[string]) []string {
	keys := s.ToSlice()
	slices.Sort(keys)
	return keys
}

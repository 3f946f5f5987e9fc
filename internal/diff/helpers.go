package diff

import "fixity/internal/snapshot"

// compareLCS aligns the path sequences of old and new through an LCS
// matrix. Matched paths are compared by digest, unmatched ones are removals
// or additions. Only equivalent to compareMerge on sorted, duplicate-free
// snapshots.
func compareLCS(old, new *snapshot.Snapshot) Report {
	oldPaths, newPaths := old.Paths(), new.Paths()
	lcs := buildLCSMatrix(oldPaths, newPaths)

	var r Report
	i, j := 0, 0
	for i < len(oldPaths) || j < len(newPaths) {
		switch {
		case i < len(oldPaths) && j < len(newPaths) && oldPaths[i] == newPaths[j]:
			if old.At(i).Sum != new.At(j).Sum {
				r.Modified = append(r.Modified, newPaths[j])
			}
			i++
			j++
		case j < len(newPaths) && (i == len(oldPaths) || lcs[i][j+1] >= lcs[i+1][j]):
			r.Added = append(r.Added, newPaths[j])
			j++
		default:
			r.Removed = append(r.Removed, oldPaths[i])
			i++
		}
	}

	return r
}

// buildLCSMatrix returns m where m[i][j] is the length of the longest
// common subsequence of oldLines[i:] and newLines[j:].
func buildLCSMatrix(oldLines, newLines []string) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

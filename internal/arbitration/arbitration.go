// Package arbitration implements Conflict Arbitration (spec §4.6 C6): given
// a group of discovery.File records sharing a registry path, decide which
// become the universal (registry) representative and which become
// platform-specific-suffixed siblings.
package arbitration

import (
	"sort"

	"github.com/openpackage/opkg/internal/discovery"
	"github.com/openpackage/opkg/internal/platform"
)

// Outcome is one resolved file after arbitration.
type Outcome struct {
	File           discovery.File
	RegistryPath   string // final path inside the registry version dir
	IsUniversal    bool
	TargetPlatform platform.ID // set when !IsUniversal
}

// Resolution carries the full arbitrated group plus whether an interactive
// escalation was offered/used.
type Resolution struct {
	Outcomes   []Outcome
	Escalated  bool
}

// platformSpecificPath applies the platform-specific filename transform
// from spec §4.6: "foo.md" at "commands/pkg/foo.md" becomes
// "commands/pkg/foo.claude.md" for platform claude. For root-like groups
// it instead picks the platform's native root filename.
func platformSpecificPath(registryPath string, platformID platform.ID) string {
	if discovery.IsRootLike(registryPath) {
		if def, ok := platform.Get(platformID); ok && def.RootFile != "" {
			return def.RootFile
		}
		return ""
	}

	dot := lastIndexByte(registryPath, '.')
	if dot < 0 {
		return registryPath + "." + string(platformID)
	}
	return registryPath[:dot] + "." + string(platformID) + registryPath[dot:]
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// Resolve arbitrates one group of files sharing a registryPath. isStable
// indicates whether the target version being saved is stable (needed for
// the interactive-escalation eligibility in rule 4); chooser is nil for
// non-interactive saves (SPEC_FULL.md §5(b)).
func Resolve(registryPath string, files []discovery.File, isStable bool, chooser Chooser) (Resolution, error) {
	// forcePlatformSpecific files always bypass arbitration.
	var forced []discovery.File
	var normal []discovery.File
	for _, f := range files {
		if f.ForcePlatformSpecific {
			forced = append(forced, f)
		} else {
			normal = append(normal, f)
		}
	}

	var outcomes []Outcome
	for _, f := range forced {
		outcomes = append(outcomes, platformOutcome(registryPath, f))
	}

	if discovery.IsRootLike(registryPath) {
		// Root-like groups drop platforms without a native root file;
		// the rest are handled by the Marker Engine at a higher layer,
		// but arbitration still needs to report the target filename per
		// platform so Save step 7 knows where the section landed.
		for _, f := range normal {
			out := platformOutcome(registryPath, f)
			if out.RegistryPath == "" {
				continue
			}
			outcomes = append(outcomes, out)
		}
		return Resolution{Outcomes: outcomes}, nil
	}

	if len(normal) == 0 {
		return Resolution{Outcomes: outcomes}, nil
	}
	if len(normal) == 1 {
		outcomes = append(outcomes, Outcome{File: normal[0], RegistryPath: registryPath, IsUniversal: true})
		return Resolution{Outcomes: outcomes}, nil
	}

	res, err := resolveNormalGroup(registryPath, normal, isStable, chooser)
	if err != nil {
		return Resolution{}, err
	}
	res.Outcomes = append(outcomes, res.Outcomes...)
	return res, nil
}

func platformOutcome(registryPath string, f discovery.File) Outcome {
	id := platform.ID(f.SourceDir)
	path := platformSpecificPath(registryPath, id)
	return Outcome{File: f, RegistryPath: path, IsUniversal: false, TargetPlatform: id}
}

func resolveNormalGroup(registryPath string, files []discovery.File, isStable bool, chooser Chooser) (Resolution, error) {
	allSameHash := true
	for _, f := range files[1:] {
		if f.ContentHash != files[0].ContentHash {
			allSameHash = false
			break
		}
	}
	if allSameHash {
		latest := latestMtime(files)
		return Resolution{Outcomes: []Outcome{{File: latest, RegistryPath: registryPath, IsUniversal: true}}}, nil
	}

	allSameMtime := true
	for _, f := range files[1:] {
		if !f.Mtime.Equal(files[0].Mtime) {
			allSameMtime = false
			break
		}
	}

	if allSameMtime {
		buckets := bucketByHash(files)
		maxCount := 0
		for _, b := range buckets {
			if len(b) > maxCount {
				maxCount = len(b)
			}
		}

		allUnique := maxCount < 2

		if allUnique && isStable && chooser != nil {
			res, ok, err := tryInteractiveChoice(registryPath, files, chooser)
			if err != nil {
				return Resolution{}, err
			}
			if ok {
				res.Escalated = true
				return res, nil
			}
			// user cancelled: fall back to rule 2.
		}

		return bucketRule(registryPath, buckets, maxCount), nil
	}

	// Different mtimes: rule 3.
	maxMtime := files[0].Mtime
	for _, f := range files[1:] {
		if f.Mtime.After(maxMtime) {
			maxMtime = f.Mtime
		}
	}
	var latestFiles []discovery.File
	for _, f := range files {
		if f.Mtime.Equal(maxMtime) {
			latestFiles = append(latestFiles, f)
		}
	}
	if len(latestFiles) == 1 {
		return Resolution{Outcomes: []Outcome{{File: latestFiles[0], RegistryPath: registryPath, IsUniversal: true}}}, nil
	}
	var outcomes []Outcome
	for _, f := range files {
		outcomes = append(outcomes, platformOutcome(registryPath, f))
	}
	return Resolution{Outcomes: outcomes}, nil
}

func bucketRule(registryPath string, buckets map[string][]discovery.File, maxCount int) Resolution {
	var outcomes []Outcome
	if maxCount >= 2 {
		for _, bucket := range buckets {
			if len(bucket) == maxCount {
				rep := latestMtime(bucket)
				outcomes = append(outcomes, Outcome{File: rep, RegistryPath: registryPath, IsUniversal: true})
			} else {
				for _, f := range bucket {
					outcomes = append(outcomes, platformOutcome(registryPath, f))
				}
			}
		}
	} else {
		for _, bucket := range buckets {
			for _, f := range bucket {
				outcomes = append(outcomes, platformOutcome(registryPath, f))
			}
		}
	}
	return Resolution{Outcomes: outcomes}
}

func bucketByHash(files []discovery.File) map[string][]discovery.File {
	buckets := map[string][]discovery.File{}
	for _, f := range files {
		buckets[f.ContentHash] = append(buckets[f.ContentHash], f)
	}
	return buckets
}

// latestMtime returns the mtime-latest file in files; on a tie, the file
// whose SourceDir sorts first lexicographically wins, giving a
// deterministic choice as spec §8's boundary behavior requires.
func latestMtime(files []discovery.File) discovery.File {
	sorted := append([]discovery.File{}, files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Mtime.Equal(sorted[j].Mtime) {
			return sorted[i].Mtime.After(sorted[j].Mtime)
		}
		return sorted[i].SourceDir < sorted[j].SourceDir
	})
	return sorted[0]
}

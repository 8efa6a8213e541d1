package arbitration

import (
	"context"

	"github.com/openpackage/opkg/internal/discovery"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/prompt"
)

// Chooser is the interactive-escalation hook for the "problematic" case in
// spec §4.6 rule 4: all same mtime, all unique hashes, stable target
// version. It is a thin adapter over prompt.Prompter so arbitration never
// imports a concrete prompt implementation.
type Chooser interface {
	ChooseUniversal(ctx context.Context, registryPath string, candidates []discovery.File) (electedIndex int, platformSpecific map[string]bool, cancelled bool, err error)
}

// PromptChooser adapts a prompt.Prompter into a Chooser.
type PromptChooser struct {
	Prompter prompt.Prompter
	Ctx      context.Context
}

func (c PromptChooser) ChooseUniversal(ctx context.Context, registryPath string, candidates []discovery.File) (int, map[string]bool, bool, error) {
	labels := make([]string, len(candidates))
	for i, cand := range candidates {
		labels[i] = cand.SourceDir + ": " + cand.FullPath
	}
	choice, err := c.Prompter.Choose(ctx, "Multiple conflicting versions of "+registryPath+" found; choose the universal one", labels)
	if err != nil {
		if opkgerr.Is(err, opkgerr.UserCancellation) {
			return 0, nil, true, nil
		}
		return 0, nil, false, err
	}
	for i, l := range labels {
		if l == choice {
			return i, map[string]bool{}, false, nil
		}
	}
	return 0, nil, true, nil
}

// tryInteractiveChoice drives Chooser.ChooseUniversal and, if the user
// elects a universal file, reports each unmarked file as an outcome with
// an empty RegistryPath and the elected file's hash. It writes nothing
// itself: the caller rewrites those files' source contents to match the
// elected one.
func tryInteractiveChoice(registryPath string, files []discovery.File, chooser Chooser) (Resolution, bool, error) {
	idx, platformSpecific, cancelled, err := chooser.ChooseUniversal(context.Background(), registryPath, files)
	if err != nil {
		return Resolution{}, false, err
	}
	if cancelled {
		return Resolution{}, false, nil
	}

	elected := files[idx]
	var outcomes []Outcome
	outcomes = append(outcomes, Outcome{File: elected, RegistryPath: registryPath, IsUniversal: true})

	for i, f := range files {
		if i == idx {
			continue
		}
		if platformSpecific[f.SourceDir] {
			outcomes = append(outcomes, platformOutcome(registryPath, f))
			continue
		}
		// Unmarked files are synchronized to the elected content by the
		// caller (Save pipeline, which owns filesystem writes); here we
		// just report them as "universal-following" via the elected
		// file's hash so downstream materialization knows to overwrite
		// their workspace copies.
		synced := f
		synced.ContentHash = elected.ContentHash
		outcomes = append(outcomes, Outcome{File: synced, RegistryPath: "", IsUniversal: false})
	}

	return Resolution{Outcomes: outcomes}, true, nil
}

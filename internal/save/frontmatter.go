package save

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// frontMatterDelim is the YAML front-matter fence (spec §4.4 step 7).
const frontMatterDelim = "---"

// splitFrontMatter parses a leading "---"-delimited YAML block out of
// content. It returns ok=false when there is no fenced block or the block
// has no "platforms" key, in which case the caller emits content
// unchanged. When ok, universal is the body with the front matter
// stripped, and overrides maps platform id to that platform's parsed
// override map (marshalOverride turns each into a standalone YAML
// document), per platform-YAML split (spec §4.4 step 7, "C13-adjacent").
func splitFrontMatter(content string) (universal string, overrides map[string]map[string]interface{}, ok bool, err error) {
	lines := strings.SplitN(content, "\n", -1)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelim {
		return content, nil, false, nil
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelim {
			closeIdx = i
			break
		}
	}
	if closeIdx < 0 {
		return content, nil, false, nil
	}

	block := strings.Join(lines[1:closeIdx], "\n")
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return content, nil, false, errors.Wrap(err, "parse front matter")
	}

	rawPlatforms, ok := doc["platforms"]
	if !ok {
		return content, nil, false, nil
	}
	platformsMap, ok := rawPlatforms.(map[string]interface{})
	if !ok {
		return content, nil, false, nil
	}

	overrides = map[string]map[string]interface{}{}
	for platformID, raw := range platformsMap {
		overrideMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		overrides[platformID] = overrideMap
	}

	body := strings.Join(lines[closeIdx+1:], "\n")
	return strings.TrimPrefix(body, "\n"), overrides, true, nil
}

// marshalOverride serializes one platform's override map as a standalone
// YAML document.
func marshalOverride(override map[string]interface{}) ([]byte, error) {
	out, err := yaml.Marshal(override)
	if err != nil {
		return nil, errors.Wrap(err, "marshal platform override")
	}
	return out, nil
}

// overridePath applies the platform-specific filename transform from
// arbitration (spec §4.6), but targeting a ".yml" override file instead of
// a sibling ".md": "rules/pkg/foo.md" + "claude" -> "rules/pkg/foo.claude.yml".
func overridePath(registryPath, platformID string) string {
	dot := strings.LastIndex(registryPath, ".")
	if dot < 0 {
		return registryPath + "." + platformID + ".yml"
	}
	return registryPath[:dot] + "." + platformID + ".yml"
}

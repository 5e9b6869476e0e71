// Package policyfile implements the policy/analysis tree loader (spec.md
// §4.6): parsing a user's KDL policy file into an analysis tree the
// dispatcher and scorer can consume. It borrows the "validate everything,
// fail-fast on nothing" discipline pkg/config/validator.go uses, and the
// spirit of original_source/hipcheck's xtask document linting — check
// structure before trusting the document.
package policyfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitre/hipcheck-fabric/internal/scoring"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// PluginRef is one entry of the top-level `plugins { ... }` block: a plugin
// this run depends on, addressed by publisher/name@version with a manifest
// attribute resolved (per SPEC_FULL.md's "Plugin manifest / version
// pinning") to a dial target rather than a download URL, since fetch/cache
// is out of scope.
type PluginRef struct {
	Endpoint wire.Endpoint
	Version  string
	Manifest string
}

// Patch overrides one plugin's startup config, from the top-level
// `patch { plugin "pub/name" { config { ... } } }` block.
type Patch struct {
	Endpoint wire.Endpoint
	Config   map[string]string
}

// Document is the fully interpreted policy file: the plugin manifest table,
// any config patches, the top-level investigate policy, and the analysis
// tree (unscored — scoring.Evaluate runs later, once leaves have verdicts).
type Document struct {
	Plugins     []PluginRef
	Patches     []Patch
	Investigate string
	Tree        *scoring.Node

	// Policies maps each leaf node in Tree to its own policy expression
	// (empty string means the leaf has none; no default_policy_expression is
	// fetched from the plugin, and cmd/hipcheck marks such a leaf errored).
	Policies map[*scoring.Node]string
}

// Load reads and interprets the policy file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policyfile: reading %s: %w", path, err)
	}
	return Parse(string(data))
}

// Parse interprets src as a KDL policy document. Exported separately from
// Load so tests don't need a file.
func Parse(src string) (*Document, error) {
	nodes, err := parseKDL(src)
	if err != nil {
		return nil, err
	}

	verrs := &ValidationErrors{}
	doc := &Document{Policies: map[*scoring.Node]string{}}

	var analyzeNode *rawNode
	for _, n := range nodes {
		switch n.Name {
		case "plugins":
			doc.Plugins = parsePlugins(n, verrs)
		case "patch":
			doc.Patches = parsePatches(n, verrs)
		case "analyze":
			if analyzeNode != nil {
				verrs.add("duplicate top-level %q node", "analyze")
				continue
			}
			analyzeNode = n
		default:
			verrs.add("unrecognized top-level node %q", n.Name)
		}
	}

	if analyzeNode == nil {
		verrs.add("missing required top-level %q node", "analyze")
		return nil, verrs.errOrNil()
	}

	doc.Investigate, doc.Tree = parseAnalyze(analyzeNode, doc.Policies, verrs)

	if err := verrs.errOrNil(); err != nil {
		return nil, err
	}
	if err := scoring.NormalizeWeights(doc.Tree); err != nil {
		return nil, fmt.Errorf("policyfile: %w", err)
	}
	return doc, nil
}

func parsePlugins(block *rawNode, verrs *ValidationErrors) []PluginRef {
	var out []PluginRef
	seen := map[wire.Endpoint]bool{}
	for _, child := range block.Children {
		if child.Name != "plugin" {
			verrs.add("plugins block: unexpected node %q", child.Name)
			continue
		}
		if len(child.Args) != 1 {
			verrs.add("plugins block: %q node needs exactly one \"publisher/name\" argument", child.Name)
			continue
		}
		ep, err := parseEndpointRef(child.Args[0])
		if err != nil {
			verrs.add("plugins block: %v", err)
			continue
		}
		if seen[ep] {
			verrs.add("plugins block: duplicate plugin reference %q", child.Args[0])
			continue
		}
		seen[ep] = true
		version, _ := child.prop("version")
		manifest, _ := child.prop("manifest")
		if manifest == "" {
			verrs.add("plugins block: plugin %q missing required \"manifest\" attribute", child.Args[0])
		}
		out = append(out, PluginRef{Endpoint: ep, Version: version, Manifest: manifest})
	}
	return out
}

func parsePatches(block *rawNode, verrs *ValidationErrors) []Patch {
	var out []Patch
	for _, child := range block.Children {
		if child.Name != "plugin" {
			verrs.add("patch block: unexpected node %q", child.Name)
			continue
		}
		if len(child.Args) != 1 {
			verrs.add("patch block: %q node needs exactly one \"publisher/name\" argument", child.Name)
			continue
		}
		ep, err := parseEndpointRef(child.Args[0])
		if err != nil {
			verrs.add("patch block: %v", err)
			continue
		}
		cfg := map[string]string{}
		for _, grandchild := range child.Children {
			if grandchild.Name != "config" {
				verrs.add("patch block: plugin %q: unexpected node %q", child.Args[0], grandchild.Name)
				continue
			}
			for k, v := range grandchild.Props {
				cfg[k] = v
			}
			for _, kv := range grandchild.Children {
				if len(kv.Args) == 1 {
					cfg[kv.Name] = kv.Args[0]
				}
			}
		}
		out = append(out, Patch{Endpoint: ep, Config: cfg})
	}
	return out
}

// parseAnalyze interprets the `analyze { investigate policy="..."; ... }`
// block into the top-level investigate policy and the analysis tree. The
// root of the returned tree is a synthetic category wrapping every
// top-level category/plugin node in the block, weight-normalized like any
// other category.
func parseAnalyze(block *rawNode, policies map[*scoring.Node]string, verrs *ValidationErrors) (string, *scoring.Node) {
	var investigate string
	var children []*scoring.Node
	sawInvestigate := false

	for _, n := range block.Children {
		switch {
		case n.Name == "investigate":
			if sawInvestigate {
				verrs.add("analyze block: duplicate %q node", "investigate")
				continue
			}
			sawInvestigate = true
			p, ok := n.prop("policy")
			if !ok {
				verrs.add("analyze block: %q node missing required \"policy\" attribute", "investigate")
			}
			investigate = p
		case n.Name == "plugin":
			if leaf := parseLeafNode(n, policies, verrs); leaf != nil {
				children = append(children, leaf)
			}
		default:
			if cat := parseCategoryNode(n, policies, verrs); cat != nil {
				children = append(children, cat)
			}
		}
	}

	if !sawInvestigate {
		verrs.add("analyze block: missing required %q node", "investigate")
	}
	if len(children) == 0 {
		verrs.add("analyze block: no categories or plugins to analyze")
	}
	return investigate, scoring.NewCategory("analyze", 1, children...)
}

func parseCategoryNode(n *rawNode, policies map[*scoring.Node]string, verrs *ValidationErrors) *scoring.Node {
	weight, err := requiredWeight(n, verrs)
	if err != nil {
		return nil
	}
	var children []*scoring.Node
	for _, child := range n.Children {
		var c *scoring.Node
		if child.Name == "plugin" {
			c = parseLeafNode(child, policies, verrs)
		} else {
			c = parseCategoryNode(child, policies, verrs)
		}
		if c != nil {
			children = append(children, c)
		}
	}
	if len(children) == 0 {
		verrs.add("category %q has no children", n.Name)
		return nil
	}
	return scoring.NewCategory(n.Name, weight, children...)
}

func parseLeafNode(n *rawNode, policies map[*scoring.Node]string, verrs *ValidationErrors) *scoring.Node {
	if len(n.Args) != 1 {
		verrs.add("plugin leaf needs exactly one \"publisher/name\" argument, got %d", len(n.Args))
		return nil
	}
	ep, err := parseEndpointRef(n.Args[0])
	if err != nil {
		verrs.add("%v", err)
		return nil
	}
	weight, err := requiredWeight(n, verrs)
	if err != nil {
		return nil
	}
	policy, _ := n.prop("policy")

	leaf := scoring.NewLeaf(n.Args[0], ep, weight, scoring.LeafResult{})
	policies[leaf] = policy
	return leaf
}

func requiredWeight(n *rawNode, verrs *ValidationErrors) (float64, error) {
	text, ok := n.prop("weight")
	if !ok {
		verrs.add("node %q missing required \"weight\" attribute", n.Name)
		return 0, fmt.Errorf("missing weight")
	}
	w, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		verrs.add("node %q has non-integer weight %q", n.Name, text)
		return 0, err
	}
	return float64(w), nil
}

func parseEndpointRef(ref string) (wire.Endpoint, error) {
	publisher, name, ok := strings.Cut(ref, "/")
	if !ok || publisher == "" || name == "" {
		return wire.Endpoint{}, fmt.Errorf("plugin reference %q must have the form \"publisher/name\"", ref)
	}
	return wire.Endpoint{Publisher: publisher, Plugin: name}, nil
}

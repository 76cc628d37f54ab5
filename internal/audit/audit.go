// Package audit implements the secrets audit engine (spec component C7): a
// read-only scan across the main configuration, every agent's auth-profile
// store, the legacy auth store, and the .env file that reports plaintext
// secrets, unresolved refs, shadowed refs, and legacy residue without
// mutating anything.
package audit

import (
	"context"
	"fmt"
	"sort"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/dotenv"
	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/secretref"
)

// Code names one of the four audit finding kinds.
type Code string

const (
	CodePlaintextFound Code = "PLAINTEXT_FOUND"
	CodeRefUnresolved  Code = "REF_UNRESOLVED"
	CodeRefShadowed    Code = "REF_SHADOWED"
	CodeLegacyResidue  Code = "LEGACY_RESIDUE"
)

// Severity ranks a finding for display; the exit-code policy only cares
// about Code, not Severity, but callers rendering --json output want it.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one audit observation.
type Finding struct {
	Code      Code     `json:"code"`
	Severity  Severity `json:"severity"`
	File      string   `json:"file"`
	JSONPath  string   `json:"jsonPath"`
	Message   string   `json:"message"`
	Provider  string   `json:"provider,omitempty"`
	ProfileID string   `json:"profileId,omitempty"`
}

// Status is the audit's overall verdict, computed from the findings.
type Status string

const (
	StatusClean      Status = "clean"
	StatusFindings   Status = "findings"
	StatusUnresolved Status = "unresolved"
)

// AgentAuthStore names one agent's auth-profile store document alongside
// the path used to label its findings.
type AgentAuthStore struct {
	AgentID string
	File    string
	Store   configtree.Node
}

// Input bundles everything RunSecretsAudit scans. Every field is a
// read-only view of on-disk (or in-memory, for tests) state — the audit
// engine never writes.
type Input struct {
	Registry   *registry.Registry
	Providers  providers.Registry
	Limits     providers.Limits
	MainConfig configtree.Node
	MainFile   string

	AuthStores []AgentAuthStore

	// LegacyAuthStore is the decoded legacy auth store document, or nil if
	// none is configured.
	LegacyAuthStore map[string]any
	LegacyFile      string

	// Dotenv is the parsed .env file, or nil if none is configured.
	Dotenv     *dotenv.File
	DotenvFile string
	// KnownEnvSecretVars is the list of uppercase variable names considered
	// secret-bearing when found non-empty in Dotenv.
	KnownEnvSecretVars []string
}

// Result is RunSecretsAudit's output.
type Result struct {
	Status   Status
	Findings []Finding
}

// ExitCode implements the audit exit-code policy: unresolved findings
// always win; otherwise a --check run exits non-zero if anything was found.
func (r Result) ExitCode(check bool) int {
	if r.Status == StatusUnresolved {
		return 2
	}
	if check && len(r.Findings) > 0 {
		return 1
	}
	return 0
}

// refCandidate is one discovered ref pending batch resolution, carrying
// enough context to turn a resolution failure into a Finding.
type refCandidate struct {
	ref      secretref.Ref
	expected registry.ExpectedResolvedValue
	file     string
	jsonPath string
	provider string
}

// shadowCandidate is one TrackProviderShadowing config target with a
// configured ref, pending cross-reference against auth-profile credentials.
type shadowCandidate struct {
	providerID string
	accountID  string
	file       string
	jsonPath   string
}

// profileCredential is one usable (plaintext- or ref-configured) credential
// found in an auth-profile store, keyed by the provider/account it serves.
type profileCredential struct {
	providerID string
	accountID  string
}

// RunSecretsAudit scans every shared resource in Input for plaintext
// secrets, legacy residue, and shadowed refs, then batches every
// discovered ref through the provider pipeline to find unresolved ones.
func RunSecretsAudit(ctx context.Context, in Input) (Result, error) {
	var findings []Finding
	var refs []refCandidate
	var shadowTargets []shadowCandidate
	var credentials []profileCredential

	// --- main config: refs + plaintext -----------------------------------
	for _, dt := range in.Registry.DiscoverConfigSecretTargets(in.MainConfig, includeInAuditIDs(in.Registry, registry.ConfigFileMain)) {
		resolved := secretref.ResolveSecretInputRef(secretref.ResolveSecretInputRefParams{Value: dt.Value, RefValue: dt.RefValue})
		if resolved.Ref != nil {
			refs = append(refs, refCandidate{
				ref:      *resolved.Ref,
				expected: dt.Entry.ExpectedResolvedValue,
				file:     in.MainFile,
				jsonPath: dt.Path,
				provider: resolved.Ref.Provider,
			})
			if dt.Entry.TrackProviderShadowing {
				providerID, accountID := shadowIdentity(dt)
				shadowTargets = append(shadowTargets, shadowCandidate{
					providerID: providerID,
					accountID:  accountID,
					file:       in.MainFile,
					jsonPath:   dt.Path,
				})
			}
			continue
		}
		if plaintext, ok := dt.Value.(string); ok && plaintext != "" {
			findings = append(findings, Finding{
				Code:     CodePlaintextFound,
				Severity: SeverityWarning,
				File:     in.MainFile,
				JSONPath: dt.Path,
				Message:  fmt.Sprintf("%s: plaintext secret stored directly in configuration", dt.Path),
			})
		}
	}

	// --- per-agent auth-profile stores: ref + plaintext + oauth residue ---
	for _, store := range in.AuthStores {
		for _, dt := range in.Registry.DiscoverAuthProfileSecretTargets(store.Store, includeInAuditIDs(in.Registry, registry.ConfigFileAuthProfile)) {
			if dt.Entry.AuthProfileType != "" && !matchesDeclaredProfileType(store.Store, dt) {
				continue
			}
			profileID, _ := secretref.ProfileProviderKey(profileIDOf(dt))
			resolved := secretref.ResolveSecretInputRef(secretref.ResolveSecretInputRefParams{Value: dt.Value, RefValue: dt.RefValue})

			hasCredential := resolved.Ref != nil
			if !hasCredential {
				if plaintext, ok := dt.Value.(string); ok && plaintext != "" {
					hasCredential = true
				}
			}

			if dt.Entry.AuthProfileType == "oauth" {
				// OAuth is recognized but out-of-scope for ref resolution: a
				// configured OAuth credential — plaintext or ref — is
				// residue from a migration, never batched for resolution.
				if hasCredential {
					findings = append(findings, Finding{
						Code:      CodeLegacyResidue,
						Severity:  SeverityWarning,
						File:      store.File,
						JSONPath:  dt.Path,
						Message:   fmt.Sprintf("%s: oauth credential stored in auth-profile store", dt.Path),
						ProfileID: profileID,
					})
				}
				if hasCredential && dt.Entry.TrackProviderShadowing {
					providerID, accountID := secretref.ProfileProviderKey(profileIDOf(dt))
					credentials = append(credentials, profileCredential{providerID: providerID, accountID: accountID})
				}
				continue
			}

			if resolved.Ref != nil {
				refs = append(refs, refCandidate{
					ref:      *resolved.Ref,
					expected: dt.Entry.ExpectedResolvedValue,
					file:     store.File,
					jsonPath: dt.Path,
					provider: resolved.Ref.Provider,
				})
			} else if plaintext, ok := dt.Value.(string); ok && plaintext != "" {
				findings = append(findings, Finding{
					Code:      CodePlaintextFound,
					Severity:  SeverityWarning,
					File:      store.File,
					JSONPath:  dt.Path,
					Message:   fmt.Sprintf("%s: plaintext secret stored in auth-profile store", dt.Path),
					ProfileID: profileID,
				})
			}
			if hasCredential && dt.Entry.TrackProviderShadowing {
				providerID, accountID := secretref.ProfileProviderKey(profileIDOf(dt))
				credentials = append(credentials, profileCredential{providerID: providerID, accountID: accountID})
			}
		}
	}

	// --- legacy auth store: static api-key entries are residue -----------
	for providerID, v := range in.LegacyAuthStore {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := entry["type"].(string); t != "api_key" {
			continue
		}
		key, _ := entry["key"].(string)
		if key == "" {
			continue
		}
		findings = append(findings, Finding{
			Code:     CodeLegacyResidue,
			Severity: SeverityWarning,
			File:     in.LegacyFile,
			JSONPath: providerID,
			Message:  fmt.Sprintf("%s: static api-key entry present in legacy auth store", providerID),
			Provider: providerID,
		})
	}

	// --- .env: known secret variable names with non-empty values ---------
	if in.Dotenv != nil {
		for _, name := range in.KnownEnvSecretVars {
			if value, ok := in.Dotenv.Lookup(name); ok && value != "" {
				findings = append(findings, Finding{
					Code:     CodePlaintextFound,
					Severity: SeverityWarning,
					File:     in.DotenvFile,
					JSONPath: name,
					Message:  fmt.Sprintf("%s: plaintext secret set in .env", name),
				})
			}
		}
	}

	// --- batch-resolve every discovered ref -------------------------------
	if len(refs) > 0 {
		plainRefs := make([]secretref.Ref, len(refs))
		for i, c := range refs {
			plainRefs[i] = c.ref
		}
		batchResult, err := providers.ResolveAll(ctx, in.Providers, plainRefs, in.Limits)
		if err != nil {
			return Result{}, err
		}
		for _, c := range refs {
			key := c.ref.Key()
			if rerr, failed := batchResult.Errors[key]; failed {
				findings = append(findings, Finding{
					Code:     CodeRefUnresolved,
					Severity: SeverityError,
					File:     c.file,
					JSONPath: c.jsonPath,
					Message:  fmt.Sprintf("%s: %v", c.jsonPath, rerr),
					Provider: c.provider,
				})
				continue
			}
			value, ok := batchResult.Values[key]
			if !ok || !isExpectedResolvedSecretValue(c.expected, value) {
				findings = append(findings, Finding{
					Code:     CodeRefUnresolved,
					Severity: SeverityError,
					File:     c.file,
					JSONPath: c.jsonPath,
					Message:  fmt.Sprintf("%s: resolved value does not match expected shape %q", c.jsonPath, c.expected),
					Provider: c.provider,
				})
			}
		}
	}

	// --- shadowed refs -----------------------------------------------------
	for _, target := range shadowTargets {
		for _, cred := range credentials {
			if cred.providerID != target.providerID {
				continue
			}
			if target.accountID != "" && cred.accountID != target.accountID {
				continue
			}
			findings = append(findings, Finding{
				Code:     CodeRefShadowed,
				Severity: SeverityWarning,
				File:     target.file,
				JSONPath: target.jsonPath,
				Message:  fmt.Sprintf("%s: provider %q has usable credentials in an auth-profile store, shadowing this ref", target.jsonPath, target.providerID),
				Provider: target.providerID,
			})
			break
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].JSONPath < findings[j].JSONPath
	})

	status := StatusClean
	for _, f := range findings {
		if f.Code == CodeRefUnresolved {
			status = StatusUnresolved
			break
		}
	}
	if status == StatusClean && len(findings) > 0 {
		status = StatusFindings
	}

	return Result{Status: status, Findings: findings}, nil
}

// isExpectedResolvedSecretValue mirrors the resolver's post-condition check:
// for "string", a non-empty string; for "string-or-object", also a non-nil
// mapping. Duplicated rather than imported from internal/resolver to keep
// the audit engine from depending on the resolver's stateful machinery for
// a two-branch value check.
func isExpectedResolvedSecretValue(expected registry.ExpectedResolvedValue, v any) bool {
	switch expected {
	case registry.ExpectedString:
		s, ok := v.(string)
		return ok && s != ""
	case registry.ExpectedStringOrObject:
		if s, ok := v.(string); ok {
			return s != ""
		}
		m, ok := v.(map[string]any)
		return ok && m != nil
	default:
		return false
	}
}

// shadowIdentity derives the (providerID, accountID) pair a TrackProviderShadowing
// config target shadows against. When the entry captures a dynamic provider
// id (models.providers.*.apiKey), that capture is used directly; entries
// with a fixed provider (googlechat's static service-account targets) fall
// back to the channel-name path segment, since no wildcard capture exists to
// read a provider id from.
func shadowIdentity(dt registry.DiscoveredTarget) (providerID, accountID string) {
	if dt.Entry.ProviderIDSegmentIndex != nil {
		providerID = dt.ProviderID
	} else if len(dt.PathSegments) >= 2 {
		providerID = dt.PathSegments[1]
	}
	return providerID, dt.AccountID
}

// matchesDeclaredProfileType reports whether dt's profile actually declares
// the type dt.Entry.AuthProfileType expects, the same sibling-field check
// the resolver's walk applies — pattern matching alone would still discover
// a field sitting on a differently-typed (or malformed) profile object;
// the stored "type" is the only authoritative signal.
func matchesDeclaredProfileType(store configtree.Node, dt registry.DiscoveredTarget) bool {
	typeSegs := append(append([]string{}, dt.PathSegments[:len(dt.PathSegments)-1]...), "type")
	profileType, _ := configtree.GetPath(store, typeSegs)
	s, ok := profileType.(string)
	return ok && s == dt.Entry.AuthProfileType
}

// profileIDOf returns the raw profile id a DiscoveredTarget's capture named,
// i.e. dt.ProviderID for auth-profile entries (whose ProviderIDSegmentIndex
// always points at the profile-id wildcard, not a separately-captured
// provider id — ProfileProviderKey splits it into provider/account parts).
func profileIDOf(dt registry.DiscoveredTarget) string { return dt.ProviderID }

// includeInAuditIDs returns the set of entry ids scoped to cf that are
// marked IncludeInAudit, or nil (meaning "all") if every entry in that scope
// is included.
func includeInAuditIDs(reg *registry.Registry, cf registry.ConfigFile) map[string]bool {
	ids := map[string]bool{}
	all := true
	for _, e := range reg.Entries() {
		if e.ConfigFile != cf {
			continue
		}
		if e.IncludeInAudit {
			ids[e.ID] = true
		} else {
			all = false
		}
	}
	if all {
		return nil
	}
	return ids
}

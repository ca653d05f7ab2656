package domain

import "sort"

// CredentialMap is the plaintext form of a DataSource's credentials.
// Keys are provider specific (e.g. "jira_url", "jira_api_token").
// It only exists in memory between a vault Decrypt and a connector call.
type CredentialMap map[string]string

// Missing returns the required keys that are absent or empty, sorted.
func (m CredentialMap) Missing(required []string) []string {
	var missing []string
	for _, key := range required {
		if m[key] == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// HasAll returns true if every required key has a non-empty value.
func (m CredentialMap) HasAll(required []string) bool {
	return len(m.Missing(required)) == 0
}

// Clone returns a shallow copy of the map.
func (m CredentialMap) Clone() CredentialMap {
	if m == nil {
		return nil
	}
	out := make(CredentialMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a copy of m with updates applied on top.
// Empty update values are ignored so partial updates keep existing secrets.
func (m CredentialMap) Merge(updates CredentialMap) CredentialMap {
	out := m.Clone()
	if out == nil {
		out = make(CredentialMap, len(updates))
	}
	for k, v := range updates {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Keys returns the credential keys, sorted. Values are never exposed.
func (m CredentialMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

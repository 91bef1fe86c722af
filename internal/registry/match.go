package registry

import (
	"strings"

	"github.com/xrash/smetrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leadsignal/intel-bot/internal/core/domain"
)

// Naming conventions recognized when deriving a candidate account name from a
// channel name.
var (
	candidatePrefixes = []string{"customer-", "acct-", "account-", "client-"}
	candidateSuffixes = []string{"-support", "-internal", "-sales", "-cs"}
)

const jaroWinklerPrefixSize = 4

// DeriveCandidate extracts a candidate account name from a channel name using
// the prefix/suffix conventions. If no pattern matches, the whole cleaned
// name is the candidate.
func DeriveCandidate(channelName string) string {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(channelName)), "#")

	for _, prefix := range candidatePrefixes {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)

			break
		}
	}

	for _, suffix := range candidateSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)

			break
		}
	}

	name = strings.Trim(name, "-_ ")
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)

	if name == "" {
		return ""
	}

	return cases.Title(language.English).String(name)
}

// BestMatch fuzzy-matches the candidate against the directory and returns the
// best match at or above the threshold, or nil.
func BestMatch(candidate string, accounts []domain.Account, threshold float64) *domain.AccountMatch {
	if candidate == "" {
		return nil
	}

	var best *domain.AccountMatch

	for _, account := range accounts {
		score := smetrics.JaroWinkler(
			strings.ToLower(candidate),
			strings.ToLower(account.Name),
			0.7,
			jaroWinklerPrefixSize,
		)

		if score < threshold {
			continue
		}

		if best == nil || score > best.Confidence {
			best = &domain.AccountMatch{
				AccountID:   account.ID,
				AccountName: account.Name,
				Confidence:  score,
			}
		}
	}

	return best
}

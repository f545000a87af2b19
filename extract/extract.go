package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"leadsweep/identity"
	"leadsweep/models"
)

// Input carries everything one extraction pass may inspect: the raw search
// result record for the listing and the rendered detail page. Either side
// may be empty.
type Input struct {
	Payload models.RawListing
	HTML    string
}

// Contacts runs the fallback chain over in, stopping at the first strategy
// that yields at least one candidate with a usable phone number. Within one
// call candidates dedupe by agent id when present and by normalized phone
// otherwise, first occurrence wins. Every returned candidate carries a
// normalized phone.
func Contacts(in Input) []models.CandidateContact {
	if candidates := dedupe(fromStructuredPayload(in.Payload)); len(candidates) > 0 {
		return candidates
	}
	if in.HTML == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.HTML))
	if err != nil {
		return nil
	}

	if candidates := dedupe(fromEmbeddedAttribution(doc)); len(candidates) > 0 {
		return candidates
	}
	if candidates := dedupe(fromMarkupHeuristics(doc)); len(candidates) > 0 {
		return candidates
	}
	return dedupe(fromRawPhoneSweep(doc))
}

func dedupe(candidates []models.CandidateContact) []models.CandidateContact {
	if len(candidates) < 2 {
		return candidates
	}

	seenPhone := make(map[string]bool, len(candidates))
	seenAgent := make(map[string]bool, len(candidates))
	var out []models.CandidateContact
	for _, c := range candidates {
		if seenPhone[c.PhoneNumber] || (c.AgentID != "" && seenAgent[c.AgentID]) {
			continue
		}
		seenPhone[c.PhoneNumber] = true
		if c.AgentID != "" {
			seenAgent[c.AgentID] = true
		}
		out = append(out, c)
	}
	return out
}

// =============================================================================
// Strategy 1: structured contacts already present on the search payload
// =============================================================================

func fromStructuredPayload(payload models.RawListing) []models.CandidateContact {
	if payload == nil {
		return nil
	}

	var out []models.CandidateContact
	for _, entry := range payload.Maps("contacts", "contact_recipients", "contactRecipients") {
		phone, ok := identity.NormalizePhone(entryPhone(entry))
		if !ok {
			continue
		}
		out = append(out, models.CandidateContact{
			Name:          entry.String("name", "display_name", "displayName"),
			PhoneNumber:   phone,
			Company:       entry.String("company", "brokerName", "broker_name", "brokerage_name"),
			AgentID:       entry.String("agentId", "agent_id", "zuid", "encodedZuid"),
			LicenseNumber: entry.String("licenseNumber", "license_number"),
			Type:          contactType(entry.String("type", "contact_type")),
		})
	}
	if len(out) > 0 {
		return out
	}

	// Some payload shapes flatten a single contact into top-level scalars.
	rawPhone := payload.String("agentPhoneNumber", "contactPhone")
	if rawPhone == "" {
		rawPhone = entryPhone(payload)
	}
	phone, ok := identity.NormalizePhone(rawPhone)
	if !ok {
		return nil
	}
	return []models.CandidateContact{{
		Name:        payload.String("agentName", "listingAgentName", "contactName"),
		PhoneNumber: phone,
		Company:     payload.String("brokerName", "brokerageName", "brokerage_name"),
		AgentID:     payload.String("agentId", "listingAgentId", "contactId"),
		Type:        models.ContactTypeAgent,
	}}
}

// entryPhone reads a phone that is either a plain string or split into
// areacode/prefix/number parts.
func entryPhone(entry models.RawListing) string {
	if phone := entry.String("phone", "phoneNumber", "phone_number"); phone != "" {
		return phone
	}
	parts := entry.Map("phone")
	if parts == nil {
		return ""
	}
	return parts.String("areacode") + parts.String("prefix") + parts.String("number")
}

func contactType(raw string) models.ContactType {
	if strings.EqualFold(raw, string(models.ContactTypeBroker)) {
		return models.ContactTypeBroker
	}
	return models.ContactTypeAgent
}

// =============================================================================
// Strategy 2: listedBy attribution block embedded in a script tag
// =============================================================================

// The attribution block is a serialized JSON literal inside a larger script
// string, so every quote is escaped. Structural regexes pull the fields out
// of the raw escaped text instead of re-parsing the whole document state.
var (
	listedByBlockRe  = regexp.MustCompile(`(?s)\\"listedBy\\":(\[.*?\])`)
	listedByNameRe   = regexp.MustCompile(`\\"id\\":\s*\\"NAME\\".*?\\"text\\":\s*\\"([^"\\]*)\\"`)
	listedByPhoneRe  = regexp.MustCompile(`\\"id\\":\s*\\"PHONE\\".*?\\"text\\":\s*\\"([^"\\]*)\\"`)
	listedByBrokerRe = regexp.MustCompile(`(?s)\\"id\\":\s*\\"BROKER\\".*?\\"elements\\":\s*\[.*?\\"id\\":\s*\\"NAME\\".*?\\"text\\":\s*\\"([^"\\]*)\\"`)
)

func fromEmbeddedAttribution(doc *goquery.Document) []models.CandidateContact {
	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), "listedBy") {
			script = s.Text()
			return false
		}
		return true
	})
	if script == "" {
		return nil
	}

	block := listedByBlockRe.FindStringSubmatch(script)
	if block == nil {
		return nil
	}

	var name, rawPhone, company string
	// The broker element nests its own NAME, so agent fields are only read
	// from the part of the block before it.
	agentPart := block[1]
	if loc := listedByBrokerRe.FindStringSubmatchIndex(block[1]); loc != nil {
		company = strings.TrimSpace(block[1][loc[2]:loc[3]])
		agentPart = block[1][:loc[0]]
	}
	if m := listedByNameRe.FindStringSubmatch(agentPart); m != nil {
		name = strings.TrimSpace(m[1])
	}
	if m := listedByPhoneRe.FindStringSubmatch(block[1]); m != nil {
		rawPhone = strings.TrimSpace(m[1])
	}

	if name == "" && company == "" {
		return nil
	}
	phone, ok := identity.NormalizePhone(rawPhone)
	if !ok {
		return nil
	}

	if name == "" {
		// Attribution that names only the brokerage.
		return []models.CandidateContact{{
			PhoneNumber: phone,
			Company:     company,
			Type:        models.ContactTypeBroker,
		}}
	}
	return []models.CandidateContact{{
		Name:        name,
		PhoneNumber: phone,
		Company:     company,
		Type:        models.ContactTypeAgent,
	}}
}

// =============================================================================
// Strategy 3: markup heuristics over agent/attribution/contact sections
// =============================================================================

var sectionSelector = strings.Join([]string{
	`[class*="agent"]`,
	`[class*="Agent"]`,
	`[class*="attribution"]`,
	`[class*="Attribution"]`,
	`[class*="listed-by"]`,
	`[class*="ListedBy"]`,
	`[class*="contact"]`,
	`[class*="Contact"]`,
	`[class*="broker"]`,
	`[class*="Broker"]`,
	`[data-testid*="attribution"]`,
	`[data-testid*="agent"]`,
	`a[href*="professionals"]`,
}, ", ")

// phonePatterns is ordered by reliability; within one section the first
// pattern that matches wins.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
	regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{4}\b`),
	regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`),
	regexp.MustCompile(`\b\d{3} \d{3} \d{4}\b`),
	regexp.MustCompile(`\b\d{10}\b`),
}

var (
	nameHarvestRe   = regexp.MustCompile(`[A-Z][a-zA-Z.\-]+(?:[ \t]+[A-Z][a-zA-Z.\-]+){1,3}`)
	profileHrefRe   = regexp.MustCompile(`/profile/([A-Za-z0-9_.\-]+)`)
	licenseRe       = regexp.MustCompile(`(?i)\b(?:license|lic|dre)\b\.?\s*#?:?\s*([A-Za-z0-9][A-Za-z0-9\-]{3,15})`)
	companyPrefixRe = regexp.MustCompile(`(?i)^(?:brokered by|listed by|courtesy of|listing provided by)[:\s]+`)
)

func fromMarkupHeuristics(doc *goquery.Document) []models.CandidateContact {
	var out []models.CandidateContact
	doc.Find(sectionSelector).Each(func(_ int, section *goquery.Selection) {
		text := sectionText(section)
		phone, ok := sectionPhone(text)
		if !ok {
			return
		}
		kind := models.ContactTypeAgent
		if strings.Contains(strings.ToLower(text), "broker") {
			kind = models.ContactTypeBroker
		}
		out = append(out, models.CandidateContact{
			Name:          sectionName(text),
			PhoneNumber:   phone,
			Company:       sectionCompany(text),
			AgentID:       sectionAgentID(section),
			LicenseNumber: sectionLicense(text),
			Type:          kind,
		})
	})
	return out
}

// sectionText flattens the selection's text with line breaks between nodes
// so tokens from adjacent elements do not run together.
func sectionText(section *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range section.Nodes {
		walk(n)
	}
	return b.String()
}

func sectionPhone(text string) (string, bool) {
	for _, re := range phonePatterns {
		if m := re.FindString(text); m != "" {
			if phone, ok := identity.NormalizePhone(m); ok {
				return phone, true
			}
		}
	}
	return "", false
}

func sectionName(text string) string {
	for _, m := range nameHarvestRe.FindAllString(text, -1) {
		if IsPlausibleName(m) {
			return m
		}
	}
	return ""
}

func sectionCompany(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = companyPrefixRe.ReplaceAllString(strings.TrimSpace(line), "")
		if IsPlausibleCompany(line) {
			return line
		}
	}
	return ""
}

func sectionAgentID(section *goquery.Selection) string {
	var agentID string
	section.Find(`a[href*="/profile/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := profileHrefRe.FindStringSubmatch(href); m != nil {
			agentID = m[1]
			return false
		}
		return true
	})
	return agentID
}

func sectionLicense(text string) string {
	if m := licenseRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// =============================================================================
// Strategy 4: raw phone sweep over the visible document text
// =============================================================================

var sweepPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`),
	regexp.MustCompile(`\b\d{10}\b`),
	regexp.MustCompile(`\+1\s*\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`),
}

func fromRawPhoneSweep(doc *goquery.Document) []models.CandidateContact {
	// Last strategy to run, so stripping non-visible nodes is safe.
	doc.Find("script, style").Remove()
	text := doc.Text()

	var out []models.CandidateContact
	for _, re := range sweepPatterns {
		for _, m := range re.FindAllString(text, -1) {
			phone, ok := identity.NormalizePhone(m)
			if !ok {
				continue
			}
			out = append(out, models.CandidateContact{
				PhoneNumber: phone,
				Type:        models.ContactTypeAgent,
			})
		}
	}
	return out
}

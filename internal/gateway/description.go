package gateway

import (
	"regexp"
	"strings"
)

const (
	DefaultClientName = "Cliente não identificado"
	DefaultMultaType  = "Serviço"
)

var (
	clientLabelRe = regexp.MustCompile(`(?i)\bcliente\s*:\s*([^|\-–\n]+)`)
	multaTypeRe   = regexp.MustCompile(`(?i)(multa\s+(?:leve|m[eé]dia|grav[ií]ssima|grave)|recurso(?:\s+de\s+multa)?|defesa\s+pr[eé]via|suspens[aã]o\s+(?:da\s+)?cnh|cassa[cç][aã]o\s+(?:da\s+)?cnh)`)
	separatorRe   = regexp.MustCompile(`\s+[-–|]\s+`)
	spacesRe      = regexp.MustCompile(`\s+`)
)

// Description is what can be recovered from a free-text charge description.
type Description struct {
	ClientName string
	MultaType  string
}

// ParseDescription extracts the client name and service type from a charge
// description such as "Multa Grave - João" or "Recurso | Cliente: Maria".
// Missing parts fall back to DefaultClientName and DefaultMultaType.
func ParseDescription(desc string) Description {
	out := Description{ClientName: DefaultClientName, MultaType: DefaultMultaType}
	d := strings.TrimSpace(desc)
	if d == "" {
		return out
	}
	if m := multaTypeRe.FindStringSubmatch(d); m != nil {
		out.MultaType = spacesRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
	}
	if m := clientLabelRe.FindStringSubmatch(d); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			out.ClientName = name
			return out
		}
	}
	parts := separatorRe.Split(d, -1)
	if len(parts) < 2 {
		return out
	}
	for i := len(parts) - 1; i >= 0; i-- {
		p := strings.TrimSpace(parts[i])
		if p == "" || multaTypeRe.MatchString(p) {
			continue
		}
		out.ClientName = p
		break
	}
	return out
}

package browser

import (
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/ppiankov/feedharvest/internal/model"
)

// CookieParams converts normalized credentials into CDP cookie parameters.
// Session-scoped credentials carry no expiry.
func CookieParams(creds []model.NormalizedCredential) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(creds))

	for _, c := range creds {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: sameSite(c.SameSite),
		}

		if !c.IsSession() {
			sec, frac := math.Modf(c.Expires)
			t := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
			p.Expires = &t
		}

		params = append(params, p)
	}

	return params
}

func sameSite(s string) network.CookieSameSite {
	switch s {
	case model.SameSiteStrict:
		return network.CookieSameSiteStrict
	case model.SameSiteLax:
		return network.CookieSameSiteLax
	default:
		return network.CookieSameSiteNone
	}
}

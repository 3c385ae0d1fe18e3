package pagination

import (
	"net/url"
	"strconv"
)

// Links builds JSON:API pagination links relative to the request URL. Upstream lists carry no
// total, so "next" is offered whenever the current page came back full.
func Links(requestURL *url.URL, params Params, returned int) map[string]string {
	if requestURL == nil {
		return nil
	}
	links := map[string]string{
		"self":  pageURL(requestURL, params.Number, params.Size),
		"first": pageURL(requestURL, 1, params.Size),
	}
	if params.Number > 1 {
		links["prev"] = pageURL(requestURL, params.Number-1, params.Size)
	}
	if params.Size > 0 && returned >= params.Size {
		links["next"] = pageURL(requestURL, params.Number+1, params.Size)
	}
	return links
}

// Meta describes the page for the document's top-level meta member.
func Meta(params Params, returned int) map[string]int {
	return map[string]int{
		"number": params.Number,
		"size":   params.Size,
		"count":  returned,
	}
}

func pageURL(base *url.URL, number, size int) string {
	u := *base
	query := u.Query()
	query.Set(ParamNumber, strconv.Itoa(number))
	query.Set(ParamSize, strconv.Itoa(size))
	u.RawQuery = query.Encode()
	u.Scheme = ""
	u.Host = ""
	return u.String()
}

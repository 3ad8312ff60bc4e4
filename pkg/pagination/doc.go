// Package pagination fetches a paginated REST collection into one ordered
// slice of records.
//
// Pages are requested one at a time with page and per_page query
// parameters. Each page runs its own small state machine:
//
//	Attempting(n) --network/5xx, n < max--> Attempting(n+1)   wait factor^(n-1) s
//	Attempting(n) --403 + quota 0--------> RateLimited        wait max(reset-now, 1s)
//	RateLimited   ----------------------> Attempting(n)      same attempt number
//	Attempting(n) --2xx, valid body------> Success
//	Attempting(n) --401, other 4xx, bad body, n == max--> Fatal
//
// A page with fewer records than the page size, or reaching MaxPages, ends
// the fetch normally. Any Fatal page aborts the whole fetch and no partial
// result is returned.
//
// Example usage:
//
//	api, _ := client.New(client.DefaultConfig(token))
//	f := pagination.New(api)
//	req := pagination.DefaultRequest("https://api.github.com/search/repositories")
//	req.Params = map[string]string{"q": "marketing", "sort": "stars"}
//	records, err := f.Fetch(ctx, req)
package pagination

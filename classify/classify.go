// Package classify assigns archived pages to semantic buckets based on their
// URL alone.
package classify

import (
	"regexp"
	"strings"
)

// Fallback is the bucket for input with no recoverable host.
const Fallback = "uncategorized"

var (
	ownerRepoPath = regexp.MustCompile(`^/[^/]+/[^/]+/?$`)
	singleSegment = regexp.MustCompile(`^/[^/]+/?$`)
	pullPath      = regexp.MustCompile(`^/[^/]+/[^/]+/pull/`)
	issuesPath    = regexp.MustCompile(`^/[^/]+/[^/]+/issues/`)
	statusPath    = regexp.MustCompile(`^/[^/]+/status/`)
	subreddit     = regexp.MustCompile(`/r/([^/]+)`)

	documentExt = regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|pptx?|txt)$`)
	imageExt    = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|bmp|webp|svg)$`)
	videoExt    = regexp.MustCompile(`(?i)\.(mp4|webm|mov|avi|wmv)$`)
	audioExt    = regexp.MustCompile(`(?i)\.(mp3|wav|aac|flac|ogg)$`)
	archiveExt  = regexp.MustCompile(`(?i)\.(zip|rar|tar|gz|7z)$`)
	codeExt     = regexp.MustCompile(`(?i)\.(py|js|ts|java|cpp|c|rb|go|rs|php|sh)$`)
)

// docServices maps documentation hosts to short service names.
var docServices = map[string]string{
	"react.dev":             "react",
	"reactjs.org":           "react",
	"nodejs.org":            "nodejs",
	"vuejs.org":             "vue",
	"angular.io":            "angular",
	"nextjs.org":            "nextjs",
	"svelte.dev":            "svelte",
	"typescriptlang.org":    "typescript",
	"python.org":            "python",
	"rust-lang.org":         "rust",
	"golang.org":            "go",
	"go.dev":                "go",
	"developer.mozilla.org": "mdn",
}

var docPaths = []string{"/docs/", "/documentation/", "/manual/", "/guide/", "/api/"}

// rule inspects a split URL and reports a bucket when it applies.
type rule func(p URLParts) (string, bool)

// rules are evaluated in order and the first match wins. A host pattern that
// is a substring of a more general one must come first.
var rules = []rule{
	ipRule,
	linkedInRule,
	gistRule,
	gitHubRule,
	gitLabRule,
	bitbucketRule,
	stackRule,
	packageRegistryRule,
	playgroundRule,
	youTubeRule,
	documentationRule,
	twitterRule,
	facebookRule,
	instagramRule,
	ecommerceRule,
	publishingRule,
	redditRule,
	streamingRule,
	fileTypeRule,
	blogRule,
	googleRule,
	microsoftRule,
	serviceRule,
	spotifyRule,
}

// Classify returns the bucket name for a URL. It never fails: input without a
// recoverable host yields Fallback.
func Classify(raw string) string {
	parts, err := SplitURL(raw)
	if err != nil {
		return Fallback
	}

	for _, r := range rules {
		if bucket, ok := r(parts); ok {
			return bucket
		}
	}

	return defaultBucket(parts.Host)
}

// defaultBucket derives "<domain>_<sub>_pages" or "<domain>_pages".
func defaultBucket(host string) string {
	main := CleanDomain(host)
	labels := strings.Split(host, ".")
	if len(labels) > 2 && labels[0] != "www" {
		return main + "_" + labels[0] + "_pages"
	}
	return main + "_pages"
}

// onDomain reports whether host is domain or one of its subdomains.
func onDomain(host string, domains ...string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func ipRule(p URLParts) (string, bool) {
	if isIP(p.Host) {
		return "ip_address_sites", true
	}
	return "", false
}

func linkedInRule(p URLParts) (string, bool) {
	if !onDomain(p.Host, "linkedin.com") {
		return "", false
	}
	switch {
	case strings.Contains(p.Path, "/in/"):
		return "linkedin_profiles", true
	case strings.Contains(p.Path, "/company/"):
		return "linkedin_companies", true
	case strings.Contains(p.Path, "/jobs/"):
		return "linkedin_jobs", true
	case strings.Contains(p.Path, "/learning/"):
		return "linkedin_learning", true
	}
	return "linkedin_other", true
}

func gistRule(p URLParts) (string, bool) {
	if onDomain(p.Host, "gist.github.com") {
		return "github_gists", true
	}
	return "", false
}

// forgeBucket applies the shared owner/repo path shape used by code hosts.
func forgeBucket(prefix, path string) string {
	switch {
	case ownerRepoPath.MatchString(path):
		return prefix + "_repositories"
	case singleSegment.MatchString(path):
		return prefix + "_profiles"
	}
	return prefix + "_other"
}

func gitHubRule(p URLParts) (string, bool) {
	if !onDomain(p.Host, "github.com") {
		return "", false
	}
	switch {
	case pullPath.MatchString(p.Path):
		return "github_pull_requests", true
	case issuesPath.MatchString(p.Path):
		return "github_issues", true
	}
	return forgeBucket("github", p.Path), true
}

func gitLabRule(p URLParts) (string, bool) {
	if !onDomain(p.Host, "gitlab.com") {
		return "", false
	}
	switch {
	case strings.Contains(p.Path, "/issues/"):
		return "gitlab_issues", true
	case strings.Contains(p.Path, "/merge_requests/"):
		return "gitlab_merge_requests", true
	}
	return forgeBucket("gitlab", p.Path), true
}

func bitbucketRule(p URLParts) (string, bool) {
	if !onDomain(p.Host, "bitbucket.org") {
		return "", false
	}
	switch {
	case strings.Contains(p.Path, "/pull-requests/"):
		return "bitbucket_pull_requests", true
	case strings.Contains(p.Path, "/issues/"):
		return "bitbucket_issues", true
	}
	return forgeBucket("bitbucket", p.Path), true
}

func stackRule(p URLParts) (string, bool) {
	switch {
	case onDomain(p.Host, "stackoverflow.com"):
		if strings.Contains(p.Path, "/questions/") {
			return "stackoverflow_questions", true
		}
		if strings.Contains(p.Path, "/users/") {
			return "stackoverflow_users", true
		}
		return "stackoverflow_other", true
	case onDomain(p.Host, "stackexchange.com"):
		return "stackexchange_questions", true
	}
	return "", false
}

func packageRegistryRule(p URLParts) (string, bool) {
	switch {
	case onDomain(p.Host, "npmjs.com"):
		if strings.Contains(p.Path, "/package/") {
			return "npm_packages", true
		}
		return "npm_other", true
	case onDomain(p.Host, "pypi.org"):
		if strings.Contains(p.Path, "/project/") {
			return "pypi_packages", true
		}
		return "pypi_other", true
	case onDomain(p.Host, "hub.docker.com"):
		if strings.Contains(p.Path, "/r/") {
			return "docker_images", true
		}
		return "docker_other", true
	case onDomain(p.Host, "nbviewer.jupyter.org"):
		return "jupyter_notebooks", true
	}
	return "", false
}

func playgroundRule(p URLParts) (string, bool) {
	switch {
	case onDomain(p.Host, "codepen.io"):
		if strings.Contains(p.Path, "/pen/") {
			return "codepen_pens", true
		}
		if singleSegment.MatchString(p.Path) {
			return "codepen_profiles", true
		}
		return "codepen_other", true
	case onDomain(p.Host, "glitch.com"):
		if strings.Contains(p.Path, "/edit/") {
			return "glitch_projects", true
		}
		return "glitch_other", true
	case onDomain(p.Host, "replit.com"):
		if strings.Contains(p.Path, "/@") {
			return "replit_profiles", true
		}
		return "replit_other", true
	case onDomain(p.Host, "jsfiddle.net"):
		return "jsfiddle_fiddles", true
	}
	return "", false
}

func youTubeRule(p URLParts) (string, bool) {
	short := p.Host == "youtu.be"
	if !short && !onDomain(p.Host, "youtube.com") {
		return "", false
	}
	switch {
	case short || strings.Contains(p.Path, "/watch"):
		return "youtube_videos", true
	case strings.Contains(p.Path, "/playlist"):
		return "youtube_playlists", true
	case containsAny(p.Path, "/channel/", "/c/", "/user/"):
		return "youtube_channels", true
	}
	return "youtube_other", true
}

func documentationRule(p URLParts) (string, bool) {
	if !containsAny(p.Path, docPaths...) {
		return "", false
	}
	return serviceName(p.Host) + "_documentation", true
}

// serviceName looks the host and then each parent domain up in docServices,
// falling back to CleanDomain.
func serviceName(host string) string {
	for h := host; strings.Contains(h, "."); h = h[strings.Index(h, ".")+1:] {
		if service, ok := docServices[h]; ok {
			return service
		}
	}
	return CleanDomain(host)
}

func twitterRule(p URLParts) (string, bool) {
	if !onDomain(p.Host, "twitter.com", "x.com") {
		return "", false
	}
	switch {
	case statusPath.MatchString(p.Path):
		return "twitter_posts", true
	case singleSegment.MatchString(p.Path):
		return "twitter_profiles", true
	}
	return "twitter_other", true
}

func facebookRule(p URLParts) (string, bool) {
	if !onDomain(p.Host, "facebook.com") {
		return "", false
	}
	switch {
	case strings.Contains(p.Path, "/events/"):
		return "facebook_events", true
	case strings.Contains(p.Path, "/groups/"):
		return "facebook_groups", true
	case singleSegment.MatchString(p.Path):
		return "facebook_profiles", true
	}
	return "facebook_other", true
}

func instagramRule(p URLParts) (string, bool) {
	if !onDomain(p.Host, "instagram.com") {
		return "", false
	}
	switch {
	case strings.HasPrefix(p.Path, "/p/"):
		return "instagram_posts", true
	case singleSegment.MatchString(p.Path):
		return "instagram_profiles", true
	}
	return "instagram_other", true
}

func ecommerceRule(p URLParts) (string, bool) {
	if !containsAny(p.Host, "amazon.", "ebay.", "walmart.", "etsy.") {
		return "", false
	}
	switch {
	case containsAny(p.Path, "/product/", "/dp/", "/itm/", "/ip/"):
		return "ecommerce_products", true
	case containsAny(p.Path, "/s/", "/sch/") || containsAny(p.Query, "search=", "q="):
		return "ecommerce_search_results", true
	}
	return "ecommerce_other", true
}

func publishingRule(p URLParts) (string, bool) {
	switch {
	case onDomain(p.Host, "medium.com"):
		return "medium_articles", true
	case strings.HasSuffix(p.Host, "news") ||
		containsAny(p.Host, "nytimes", "washingtonpost", "bbc", "cnn", "reuters"):
		return "news_articles", true
	case containsAny(p.Host, "scholar.google.", "arxiv.org", "researchgate", "academia.edu", "jstor.org"):
		return "academic_papers", true
	}
	return "", false
}

func redditRule(p URLParts) (string, bool) {
	switch {
	case onDomain(p.Host, "reddit.com"):
		if m := subreddit.FindStringSubmatch(p.Path); m != nil {
			return "reddit_" + m[1], true
		}
		return "reddit_posts", true
	case onDomain(p.Host, "quora.com"):
		return "quora_questions", true
	}
	return "", false
}

func streamingRule(p URLParts) (string, bool) {
	if onDomain(p.Host, "netflix.com", "hulu.com", "disneyplus.com", "hbomax.com") {
		return "streaming_content", true
	}
	return "", false
}

func fileTypeRule(p URLParts) (string, bool) {
	switch {
	case documentExt.MatchString(p.Path):
		return "document_files", true
	case imageExt.MatchString(p.Path):
		return "image_files", true
	case videoExt.MatchString(p.Path):
		return "video_files", true
	case audioExt.MatchString(p.Path):
		return "audio_files", true
	case archiveExt.MatchString(p.Path):
		return "archive_files", true
	case codeExt.MatchString(p.Path):
		return "code_files", true
	}
	return "", false
}

func blogRule(p URLParts) (string, bool) {
	if strings.Contains(p.Host, "blog.") || strings.Contains(p.Path, "/blog/") {
		return CleanDomain(p.Host) + "_blog_posts", true
	}
	return "", false
}

func googleRule(p URLParts) (string, bool) {
	switch {
	case onDomain(p.Host, "drive.google.com"):
		return "google_drive_files", true
	case onDomain(p.Host, "docs.google.com"):
		switch {
		case strings.Contains(p.Path, "/document/"):
			return "google_docs", true
		case strings.Contains(p.Path, "/spreadsheets/"):
			return "google_sheets", true
		case strings.Contains(p.Path, "/presentation/"):
			return "google_slides", true
		}
		return "google_docs_other", true
	case onDomain(p.Host, "calendar.google.com"):
		return "google_calendar", true
	case onDomain(p.Host, "maps.google.com"):
		return "google_maps", true
	}
	return "", false
}

func microsoftRule(p URLParts) (string, bool) {
	switch {
	case onDomain(p.Host, "onedrive.live.com", "1drv.ms"):
		return "onedrive_files", true
	case onDomain(p.Host, "office.com"):
		return "microsoft_office", true
	case onDomain(p.Host, "teams.microsoft.com"):
		return "microsoft_teams", true
	}
	return "", false
}

// serviceBuckets covers single-bucket hosts, checked in order.
var serviceBuckets = []struct {
	domains []string
	bucket  string
}{
	{[]string{"dropbox.com"}, "dropbox_files"},
	{[]string{"box.com"}, "box_files"},
	{[]string{"coursera.org"}, "coursera_courses"},
	{[]string{"udemy.com"}, "udemy_courses"},
	{[]string{"edx.org"}, "edx_courses"},
	{[]string{"khanacademy.org"}, "khanacademy_courses"},
	{[]string{"aliexpress.com"}, "aliexpress_products"},
	{[]string{"shopify.com"}, "shopify_stores"},
	{[]string{"soundcloud.com"}, "soundcloud_tracks"},
	{[]string{"music.apple.com"}, "apple_music"},
	{[]string{"slack.com"}, "slack_workspaces"},
	{[]string{"discord.com", "discord.gg"}, "discord_servers"},
	{[]string{"telegram.me", "t.me"}, "telegram_channels"},
	{[]string{"whatsapp.com"}, "whatsapp_chats"},
	{[]string{"chase.com", "bankofamerica.com", "wellsfargo.com", "coinbase.com", "binance.com"}, "finance_sites"},
}

func serviceRule(p URLParts) (string, bool) {
	for _, s := range serviceBuckets {
		if onDomain(p.Host, s.domains...) {
			return s.bucket, true
		}
	}
	return "", false
}

func spotifyRule(p URLParts) (string, bool) {
	if !onDomain(p.Host, "spotify.com") {
		return "", false
	}
	switch {
	case strings.Contains(p.Path, "/track/"):
		return "spotify_tracks", true
	case strings.Contains(p.Path, "/album/"):
		return "spotify_albums", true
	case strings.Contains(p.Path, "/playlist/"):
		return "spotify_playlists", true
	}
	return "spotify_other", true
}

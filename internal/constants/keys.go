package constants

const (
	// Context Keys
	ContextKeySite     = "site"
	ContextKeySiteID   = "siteID"
	ContextKeyIsAdmin  = "isAdmin"
	ContextKeyAuthorID = "authorID"

	// Request headers
	HeaderSite   = "X-Quire-Site"
	HeaderAuthor = "X-Quire-Author"

	// Setting Keys (per site)
	SettingBaseURL          = "base_url"
	SettingSiteName         = "site_name"
	SettingDefaultOGImage   = "default_og_image"
	SettingAPIToken         = "api_token"
	SettingOrganizationLogo = "organization_logo"

	// Collection setting keys
	CollectionSettingDefaultOGImage = "defaultOgImage"

	// Content status values
	StatusDraft     = "draft"
	StatusPublished = "published"
)

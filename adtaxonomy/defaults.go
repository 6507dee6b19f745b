package adtaxonomy

var defaultSelectors = SelectorSet{
	"adsense": {
		`ins.adsbygoogle[data-ad-client]`,
		`ins.adsbygoogle[data-ad-slot]`,
		`ins.adsbygoogle`,
		`div[id^="google_ads_iframe"]`,
		`iframe[id^="google_ads_iframe"]`,
		`#google_ads_frame`,
		`.adsbygoogle`,
		`.google-ad-container`,
		`.adsense-container`,
		`.adsbygoogle-responsive`,
	},
	"gam": {
		`div[id^="div-gpt-ad"]`,
		`div[id^="gpt-ad"]`,
		`div[id^="google_ads_iframe"]`,
		`.dfp-ad`,
		`.gpt-ad`,
	},
	"meta": {
		`div[class*="fb_ad"]`,
		`div[id^="fb-"]`,
		`.fb-ad`,
		`iframe[src*="facebook.com/plugins"]`,
		`div[data-ad*="facebook"]`,
	},
	"amazon": {
		`div[id^="amzn_assoc"]`,
		`iframe[src*="amazon-adsystem.com"]`,
		`.amzn_ads`,
		`div[class*="amazon-ad"]`,
	},
	"taboola": {
		`#taboola`,
		`[id^="taboola"]`,
		`div[id^="tbl-"]`,
		`.trc_rbox_container`,
		`.trc_related_container`,
		`div[data-placement^="Below Article Thumbnails"]`,
	},
	"outbrain": {
		`div[class*="OUTBRAIN"]`,
		`div[id^="outbrain_widget"]`,
		`.ob-widget`,
		`div[data-widget-id^="AR_"]`,
	},
	"medianet": {
		`div[id^="mdnativex"]`,
		`div[id^="mdn-"]`,
		`div[id^="_mN"]`,
		`.medianet-ad`,
	},
	"generic": {
		`.ad`, `.ads`, `.advertisement`, `.advertising`,
		`.ad-container`, `.ad-wrapper`, `.ad-unit`, `.ad-zone`, `.ad-space`,
		`.rectangle-ad`, `.leaderboard-ad`, `.skyscraper-ad`, `.banner-ad`,
		`.sidebar-ad`, `.header-ad`, `.footer-ad`, `.content-ad`,
		`iframe[id*="ad-"]`, `iframe[id*="-ad"]`,
		`iframe[class*="ad-"]`, `iframe[class*="-ad"]`,
		`[class*="-ad-placement"]`, `[class*="ad-placement"]`, `[id*="ad-placement"]`,
		`.sponsored-content`, `.sponsored-post`, `.sponsored`,
		`.native-ad`, `.promoted-content`, `.recommended-content`,
	},
}

// Display formats in catalog order. Order matters for tie-breaking.
var defaultSizes = []AdSize{
	{300, 250}, {336, 280}, {728, 90}, {300, 600}, {320, 100},
	{468, 60}, {234, 60}, {120, 600}, {160, 600}, {970, 90},
	{970, 250}, {250, 250}, {200, 200}, {320, 50}, {300, 50},
}

var defaultScriptDomains = []string{
	"pagead2.googlesyndication.com",
	"googlesyndication.com",
	"doubleclick.net",
	"googleads.g.doubleclick.net",
	"securepubads.g.doubleclick.net",
	"amazon-adsystem.com",
	"criteo.net",
	"adsrvr.org",
	"rubiconproject.com",
	"openx.net",
	"pubmatic.com",
	"adnxs.com",
	"taboola.com",
	"outbrain.com",
	"spotxchange.com",
	"advertising.com",
	"yieldmo.com",
	"smartadserver.com",
	"revcontent.com",
	"mgid.com",
	"adthrive.com",
	"mediavine.com",
}

var defaultIframeKeywords = []string{
	"ad", "ads", "advert", "banner", "iframe",
	"doubleclick", "googlesyndication", "amazon-adsystem",
	"criteo", "taboola", "outbrain", "rubicon", "pubmatic", "adnxs",
}

// Default returns a fresh copy of the built-in taxonomy.
func Default() *Taxonomy {
	t := &Taxonomy{
		Selectors:      defaultSelectors,
		Sizes:          defaultSizes,
		ScriptDomains:  defaultScriptDomains,
		IframeKeywords: defaultIframeKeywords,
	}
	return t.Clone()
}

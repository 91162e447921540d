package features

// 特徴量名。モデルの学習データの列名と一致させているため綴り (shortining 等) は変更しないこと。
const (
	HavingIPAddress        = "having_ip_address"
	URLLength              = "url_length"
	ShortiningService      = "shortining_service"
	HavingAtSymbol         = "having_at_symbol"
	DoubleSlashRedirecting = "double_slash_redirecting"
	PrefixSuffix           = "prefix_suffix"
	HavingSubDomain        = "having_sub_domain"
	SSLFinalState          = "sslfinal_state"
	DomainRegistrationLen  = "domain_registration_length"
	Favicon                = "favicon"
	Port                   = "port"
	HTTPSToken             = "https_token"
	RequestURL             = "request_url"
	URLOfAnchor            = "url_of_anchor"
	LinksInTags            = "links_in_tags"
	SFH                    = "sfh"
	SubmittingToEmail      = "submitting_to_email"
	AbnormalURL            = "abnormal_url"
	Redirect               = "redirect"
	OnMouseover            = "on_mouseover"
	RightClick             = "rightclick"
	PopupWindow            = "popupwindow"
	Iframe                 = "iframe"
	AgeOfDomain            = "age_of_domain"
	DNSRecord              = "dnsrecord"
	WebTraffic             = "web_traffic"
	PageRank               = "page_rank"
	GoogleIndex            = "google_index"
	LinksPointingToPage    = "links_pointing_to_page"
	StatisticalReport      = "statistical_report"
)

// VectorLength は特徴ベクトルの長さです。
const VectorLength = 30

// CanonicalOrder は特徴ベクトルの各スロットに対応する特徴量名の並びです。
var CanonicalOrder = []string{
	HavingIPAddress, URLLength, ShortiningService, HavingAtSymbol,
	DoubleSlashRedirecting, PrefixSuffix, HavingSubDomain, SSLFinalState,
	DomainRegistrationLen, Favicon, Port, HTTPSToken, RequestURL,
	URLOfAnchor, LinksInTags, SFH, SubmittingToEmail, AbnormalURL,
	Redirect, OnMouseover, RightClick, PopupWindow, Iframe, AgeOfDomain,
	DNSRecord, WebTraffic, PageRank, GoogleIndex, LinksPointingToPage,
	StatisticalReport,
}

// 各導出器が書き込む特徴量。導出器同士で重複しない。
var (
	LexicalKeys = []string{
		URLLength, HavingIPAddress, ShortiningService, HavingAtSymbol,
		DoubleSlashRedirecting, PrefixSuffix, HavingSubDomain, Port, HTTPSToken,
	}

	StructuralKeys = []string{
		SFH, SubmittingToEmail, Iframe, PopupWindow, OnMouseover,
		RightClick, URLOfAnchor, LinksInTags, Favicon,
	}

	// NetworkKeys のうち ReservedKeys は外部データソース用の予約枠で、常に 0 です。
	NetworkKeys = []string{
		AgeOfDomain, DomainRegistrationLen, DNSRecord, SSLFinalState, Redirect,
		WebTraffic, PageRank, GoogleIndex, LinksPointingToPage, StatisticalReport,
		AbnormalURL, RequestURL,
	}

	ReservedKeys = []string{
		WebTraffic, PageRank, GoogleIndex, LinksPointingToPage, StatisticalReport,
		AbnormalURL, RequestURL,
	}
)

// Set は特徴量名から整数コードへの対応です。キーがないことは「未計算」を意味し、
// 明示的な 0 (計算したが不明) とは区別されます。
type Set map[string]int

// Has はキーが設定済みかを返します。
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Merge は other のキーをすべて s にコピーします。
func (s Set) Merge(other Set) {
	for k, v := range other {
		s[k] = v
	}
}

// Clone は独立したコピーを返します。
func (s Set) Clone() Set {
	out := make(Set, len(s))
	out.Merge(s)
	return out
}

package lookup

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"golang.org/x/net/publicsuffix"
)

// DefaultWhoisTimeout はWHOISサーバーへの問い合わせ1回あたりの上限です。
const DefaultWhoisTimeout = 5 * time.Second

// WhoisRecord はWHOIS応答から取り出した、特徴量計算に必要な項目だけを保持します。
// 作成日が得られなかった場合 CreationDates は空、ネームサーバーがなければ NameServers は空です。
type WhoisRecord struct {
	Domain        string
	CreationDates []time.Time
	NameServers   []string
}

// EarliestCreation は最も古い作成日を返します。作成日がない場合は false です。
func (r *WhoisRecord) EarliestCreation() (time.Time, bool) {
	if r == nil || len(r.CreationDates) == 0 {
		return time.Time{}, false
	}
	earliest := r.CreationDates[0]
	for _, d := range r.CreationDates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
	}
	return earliest, true
}

// HasNameServers はネームサーバーが1件以上報告されているかを返します。
func (r *WhoisRecord) HasNameServers() bool {
	return r != nil && len(r.NameServers) > 0
}

// Querier は生のWHOIS応答を返すクライアントです。*whois.Client がこれを満たします。
type Querier interface {
	Whois(domain string, servers ...string) (string, error)
}

// WhoisClient はWHOIS問い合わせと応答の解析を行います。
type WhoisClient struct {
	querier Querier
	timeout time.Duration
}

// WhoisOption は WhoisClient の設定を行う関数型です。
type WhoisOption func(*WhoisClient)

// WithQuerier は問い合わせを行うクライアントを差し替えます。
func WithQuerier(q Querier) WhoisOption {
	return func(c *WhoisClient) {
		c.querier = q
	}
}

// NewWhoisClient は likexian/whois を使う WhoisClient を生成します。
func NewWhoisClient(timeout time.Duration, options ...WhoisOption) *WhoisClient {
	if timeout <= 0 {
		timeout = DefaultWhoisTimeout
	}
	c := &WhoisClient{
		querier: whois.NewClient().SetTimeout(timeout),
		timeout: timeout,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Lookup はホスト名の登録ドメインについてWHOISを問い合わせます。
// 問い合わせや解析の失敗はエラーとして返し、呼び出し側で既定値に変換します。
func (c *WhoisClient) Lookup(ctx context.Context, host string) (*WhoisRecord, error) {
	domain := RegistrableDomain(host)
	if domain == "" {
		return nil, fmt.Errorf("WHOIS対象のドメインが空です (host: %q)", host)
	}

	raw, err := c.query(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("WHOIS問い合わせに失敗しました (domain: %s): %w", domain, err)
	}

	if notFoundRe.MatchString(raw) {
		return nil, fmt.Errorf("WHOISにドメインが登録されていません (domain: %s): %w", domain, whoisparser.ErrNotFoundDomain)
	}

	info, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("WHOIS応答の解析に失敗しました (domain: %s): %w", domain, err)
	}

	record := &WhoisRecord{Domain: domain}
	if info.Domain != nil {
		record.NameServers = info.Domain.NameServers
		if info.Domain.CreatedDateInTime != nil {
			record.CreationDates = append(record.CreationDates, *info.Domain.CreatedDateInTime)
		} else if d, ok := parseWhoisDate(info.Domain.CreatedDate); ok {
			record.CreationDates = append(record.CreationDates, d)
		}
	}
	record.CreationDates = mergeDates(record.CreationDates, scanCreationDates(raw))

	// 作成日もネームサーバーもない応答は未登録ドメインとして扱う
	if len(record.CreationDates) == 0 && len(record.NameServers) == 0 {
		return nil, fmt.Errorf("WHOIS応答に登録情報がありません (domain: %s): %w", domain, whoisparser.ErrNotFoundDomain)
	}

	return record, nil
}

// query はライブラリのタイムアウトに加え、コンテキストの期限でも問い合わせを打ち切ります。
func (c *WhoisClient) query(ctx context.Context, domain string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		raw string
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := c.querier.Whois(domain)
		done <- result{raw: raw, err: err}
	}()

	timer := time.NewTimer(c.timeout * 2)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.raw, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("WHOIS問い合わせがタイムアウトしました (%s)", c.timeout*2)
	}
}

// RegistrableDomain はホスト名から公開サフィックス+1のドメインを求めます。
// IPアドレスはそのまま、判定できないホストは小文字化したホストを返します。
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld1
	}
	return host
}

// 未登録ドメインに対するレジストリの定型応答 (行頭で判定する)
var notFoundRe = regexp.MustCompile(`(?im)^\s*(?:no match for|not found|no data found|no entries found|no matching record|domain not found|status:\s*(?:free|available))\b`)

// 生の応答に複数回現れる作成日の行 (レジストリとレジストラで重複する等)
var creationLineRe = regexp.MustCompile(`(?i)^\s*(?:creation date|created(?: on| date)?|registered(?: on)?|registration (?:date|time)|domain registration date)\s*:\s*(.+?)\s*$`)

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"02-Jan-2006",
	"02.01.2006",
	"January 2 2006",
	"Mon Jan 2 15:04:05 MST 2006",
}

func scanCreationDates(raw string) []time.Time {
	var dates []time.Time
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		m := creationLineRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		if d, ok := parseWhoisDate(m[1]); ok {
			dates = append(dates, d)
		}
	}
	return dates
}

func parseWhoisDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range whoisDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC(), true
		}
	}
	return time.Time{}, false
}

// mergeDates は重複を除いて古い順に並べます。
func mergeDates(a, b []time.Time) []time.Time {
	all := append(append([]time.Time{}, a...), b...)
	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })

	out := all[:0]
	for i, d := range all {
		if i > 0 && d.Equal(all[i-1]) {
			continue
		}
		out = append(out, d)
	}
	return out
}

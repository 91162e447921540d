package features

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shouni/go-phish-features/pkg/lookup"
)

// 作成日からこの日数を超えていれば古いドメインとみなす
const matureDomainDays = 365

// WhoisLookup はドメインの登録情報を取得します。*lookup.WhoisClient がこれを満たします。
type WhoisLookup interface {
	Lookup(ctx context.Context, host string) (*lookup.WhoisRecord, error)
}

// TLSChecker はホストとのTLSハンドシェイクを確認します。*lookup.TLSProber がこれを満たします。
type TLSChecker interface {
	Probe(ctx context.Context, host string) error
}

// NetworkInput はネットワーク系特徴量の計算に必要な、取得処理からの情報です。
type NetworkInput struct {
	Host          string // ポートとユーザー情報を除いたホスト名
	HasResponse   bool   // GET レスポンスを1つでも受け取ったか
	RedirectCount int    // 最後に受け取ったレスポンスのリダイレクト回数
}

// NetworkDeriver はWHOIS・DNS・TLS・リダイレクトに基づく特徴量を計算します。
// 個々の照会の失敗はエラーとして返さず、既定値に置き換えます。
type NetworkDeriver struct {
	whois          WhoisLookup
	tls            TLSChecker
	now            func() time.Time
	independentTLS bool
	logger         zerolog.Logger
}

// NetworkOption は NetworkDeriver の設定を行う関数型です。
type NetworkOption func(*NetworkDeriver)

// WithClock は現在時刻の取得方法を差し替えます。
func WithClock(now func() time.Time) NetworkOption {
	return func(d *NetworkDeriver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithIndependentTLS はWHOISの失敗時にもTLS確認を行うようにします。
// 既定ではWHOISが失敗すると sslfinal_state を -1 とし、TLS確認を行いません。
func WithIndependentTLS(enabled bool) NetworkOption {
	return func(d *NetworkDeriver) {
		d.independentTLS = enabled
	}
}

// WithNetworkLogger はロガーを設定します。
func WithNetworkLogger(logger zerolog.Logger) NetworkOption {
	return func(d *NetworkDeriver) {
		d.logger = logger
	}
}

func NewNetworkDeriver(whois WhoisLookup, tls TLSChecker, options ...NetworkOption) *NetworkDeriver {
	d := &NetworkDeriver{
		whois:  whois,
		tls:    tls,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Derive は NetworkKeys の特徴量をすべて設定した Set を返します。計算できなかった値は 0 です。
func (d *NetworkDeriver) Derive(ctx context.Context, in NetworkInput) Set {
	set := make(Set, len(NetworkKeys))
	for _, k := range NetworkKeys {
		set[k] = 0
	}

	record, err := d.lookupWhois(ctx, in.Host)
	if err != nil {
		d.logger.Warn().Err(err).Str("lookup", "whois").Str("host", in.Host).Msg("WHOIS照会に失敗しました")
		if d.independentTLS {
			set[SSLFinalState] = d.tlsState(ctx, in.Host)
		} else {
			set[SSLFinalState] = -1
		}
	} else {
		d.applyRegistration(set, record)
		set[DNSRecord] = sign(record.HasNameServers())
		set[SSLFinalState] = d.tlsState(ctx, in.Host)
	}

	if in.HasResponse {
		set[Redirect] = sign(in.RedirectCount > 0)
	}

	return set
}

func (d *NetworkDeriver) lookupWhois(ctx context.Context, host string) (*lookup.WhoisRecord, error) {
	if d.whois == nil {
		return nil, fmt.Errorf("WHOISクライアントが設定されていません")
	}
	record, err := d.whois.Lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("WHOIS応答が空です (host: %s)", host)
	}
	return record, nil
}

// applyRegistration は作成日がある場合だけ age_of_domain と domain_registration_length を設定します。
func (d *NetworkDeriver) applyRegistration(set Set, record *lookup.WhoisRecord) {
	created, ok := record.EarliestCreation()
	if !ok {
		return
	}
	ageDays := int(d.now().Sub(created).Hours() / 24)
	set[AgeOfDomain] = sign(ageDays > matureDomainDays)
	set[DomainRegistrationLen] = 1
}

func (d *NetworkDeriver) tlsState(ctx context.Context, host string) int {
	if d.tls == nil {
		return -1
	}
	if err := d.tls.Probe(ctx, host); err != nil {
		d.logger.Warn().Err(err).Str("lookup", "tls").Str("host", host).Msg("TLSハンドシェイクに失敗しました")
		return -1
	}
	return 1
}

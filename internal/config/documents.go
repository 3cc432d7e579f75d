package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DocumentsConfig holds the tunable defaults applied to quotes and invoices.
// It is read from documents.yml and hot-reloaded on change.
type DocumentsConfig struct {
	QuoteValidityDays  int    `mapstructure:"quoteValidityDays"`
	InvoiceDueDays     int    `mapstructure:"invoiceDueDays"`
	InvoiceNumberSeed  int64  `mapstructure:"invoiceNumberSeed"`
	DefaultCurrency    string `mapstructure:"defaultCurrency"`
	PDFFooterText      string `mapstructure:"pdfFooterText"`
	PDFAccentColorHex  string `mapstructure:"pdfAccentColorHex"`
	PDFWorkerQueueSize int    `mapstructure:"pdfWorkerQueueSize"`
}

func DefaultDocumentsConfig() DocumentsConfig {
	return DocumentsConfig{
		QuoteValidityDays:  30,
		InvoiceDueDays:     30,
		InvoiceNumberSeed:  1000,
		DefaultCurrency:    "USD",
		PDFFooterText:      "Generated by DealDesk",
		PDFAccentColorHex:  "#1f2a44",
		PDFWorkerQueueSize: 64,
	}
}

// DocumentsConfigHolder keeps the current DocumentsConfig and swaps it
// atomically when the file changes.
type DocumentsConfigHolder struct {
	current atomic.Value
}

func NewDocumentsConfigHolder() (*DocumentsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("documents")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dealdesk/config")
	v.AddConfigPath("/etc/dealdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DEALDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDocumentsConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("documents.quoteValidityDays", defaults.QuoteValidityDays)
		v.SetDefault("documents.invoiceDueDays", defaults.InvoiceDueDays)
		v.SetDefault("documents.invoiceNumberSeed", defaults.InvoiceNumberSeed)
		v.SetDefault("documents.defaultCurrency", defaults.DefaultCurrency)
		v.SetDefault("documents.pdfFooterText", defaults.PDFFooterText)
		v.SetDefault("documents.pdfAccentColorHex", defaults.PDFAccentColorHex)
		v.SetDefault("documents.pdfWorkerQueueSize", defaults.PDFWorkerQueueSize)
	}

	var cfg DocumentsConfig
	if err := v.UnmarshalKey("documents", &cfg); err != nil {
		return nil, err
	}
	applyDocumentDefaults(&cfg, defaults)
	if err := validateDocumentsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &DocumentsConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated DocumentsConfig
		if err := v.UnmarshalKey("documents", &updated); err != nil {
			log.Printf("[documents-config] reload failed: %v", err)
			return
		}
		applyDocumentDefaults(&updated, defaults)
		if err := validateDocumentsConfig(updated); err != nil {
			log.Printf("[documents-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[documents-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticDocumentsConfigHolder returns a holder with a fixed config
// and no file watching.
func NewStaticDocumentsConfigHolder(cfg DocumentsConfig) *DocumentsConfigHolder {
	applyDocumentDefaults(&cfg, DefaultDocumentsConfig())
	holder := &DocumentsConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *DocumentsConfigHolder) Get() DocumentsConfig {
	return h.current.Load().(DocumentsConfig)
}

func applyDocumentDefaults(cfg *DocumentsConfig, defaults DocumentsConfig) {
	if cfg.QuoteValidityDays == 0 {
		cfg.QuoteValidityDays = defaults.QuoteValidityDays
	}
	if cfg.InvoiceDueDays == 0 {
		cfg.InvoiceDueDays = defaults.InvoiceDueDays
	}
	if cfg.InvoiceNumberSeed == 0 {
		cfg.InvoiceNumberSeed = defaults.InvoiceNumberSeed
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = defaults.DefaultCurrency
	}
	if cfg.PDFFooterText == "" {
		cfg.PDFFooterText = defaults.PDFFooterText
	}
	if cfg.PDFAccentColorHex == "" {
		cfg.PDFAccentColorHex = defaults.PDFAccentColorHex
	}
	if cfg.PDFWorkerQueueSize == 0 {
		cfg.PDFWorkerQueueSize = defaults.PDFWorkerQueueSize
	}
}

func validateDocumentsConfig(cfg DocumentsConfig) error {
	if cfg.QuoteValidityDays < 0 {
		return errors.New("documents.quoteValidityDays cannot be negative")
	}
	if cfg.InvoiceDueDays < 0 {
		return errors.New("documents.invoiceDueDays cannot be negative")
	}
	if cfg.InvoiceNumberSeed < 0 {
		return errors.New("documents.invoiceNumberSeed cannot be negative")
	}
	if len(cfg.DefaultCurrency) != 3 {
		return errors.New("documents.defaultCurrency must be a 3-letter code")
	}
	return nil
}

package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerql/internal/schema"
)

// LedgerDB is the database name used by the ledger fixture.
const LedgerDB = "PK1"

// Origins used by the ledger fixture. Tokens are substituted at render time.
const (
	LedgerOrigin   = "{DB}_{LEDGER}_SALFLDG"
	AccountOrigin  = "{DB}_ACNT"
	AccountXOrigin = "{DB}_ACNT_ANL"
	AnalysisOrigin = "{DB}_ANL_CODE"
)

const ledgerAliases = `
aliases:
  LA: "{DB}_{LEDGER}_SALFLDG"
  CA: "{DB}_ACNT"
  X1: "{DB}_ACNT_ANL"
  T01: "{DB}_ANL_CODE"
  T02: "{DB}_ANL_CODE"
`

const ledgerFields = `
table: SALFLDG
connection: sunsystems
fields:
  - code: ACCNT_CODE
    name: Account Code
  - code: PERIOD
    type: SPN
    description: Period
  - code: TRANS_DATETIME
    type: SDN
    description: Transaction Date
  - code: AMOUNT
    type: N
    description: Base Amount
  - code: D_C
    description: Debit/Credit
  - code: TREFERENCE
    description: Transaction Reference
  - code: JRNAL_SRCE
    type: "0103"
    description: Journal Source
  - code: ANAL_T1
    description: Analysis T1
  - code: A01
    description: Analysis 1
  - code: A02
    description: Analysis 2
  - code: CA
    type: NODE
    ref: CA
  - code: T01
    type: NODE
    ref: T01
  - code: T02
    type: NODE
    ref: T02
`

const accountFields = `
table: ACNT
connection: sunsystems
fields:
  - code: ACNT_CODE
    description: Account
  - code: DESCR
    description: Account Name
  - code: X1
    type: NODE
    ref: X1
`

const accountAnalysisFields = `
table: ACNT_ANL
fields:
  - code: TREF
    description: Analysis Ref
  - code: NAME
    description: Analysis Name
`

const analysisFields = `
table: ANL_CODE
fields:
  - code: ANL_CODE
    description: Code
  - code: NAME
    description: Name
`

const ledgerJoins = `
joins:
  - code: LA\CA
    on: "[CA].[ACNT_CODE] = [LA].[ACCNT_CODE]"
  - code: LA\CA\X1
    on: "[CAX1].[ACNT_CODE] = [CA].[ACNT_CODE]"
  - code: LA\T01
    on: "[T01].[ANL_CODE] = [LA].[ANAL_T1]"
`

const ledgerCategories = `
categories:
  A01: Department
  T01: Region
  T02: Cost Centre
`

// Document is one fixture document with the key it is served under.
type Document struct {
	Kind     schema.DocumentKind
	Database string
	Name     string
	Body     []byte
}

// LedgerDocuments returns the documents of the ledger fixture, describing a
// small general-ledger schema in database LedgerDB:
//
//	LA (ledger) -> CA (account) -> X1 (account analysis)
//	LA -> T01, T02 (analysis codes; only T01 has a join path)
//
// A01 has a category description; A02 does not.
func LedgerDocuments() []Document {
	return []Document{
		{Kind: schema.DocAliases, Body: []byte(ledgerAliases)},
		{Kind: schema.DocFields, Database: LedgerDB, Name: LedgerOrigin, Body: []byte(ledgerFields)},
		{Kind: schema.DocFields, Database: LedgerDB, Name: AccountOrigin, Body: []byte(accountFields)},
		{Kind: schema.DocFields, Database: LedgerDB, Name: AccountXOrigin, Body: []byte(accountAnalysisFields)},
		{Kind: schema.DocFields, Database: LedgerDB, Name: AnalysisOrigin, Body: []byte(analysisFields)},
		{Kind: schema.DocJoins, Database: LedgerDB, Body: []byte(ledgerJoins)},
		{Kind: schema.DocCategories, Database: LedgerDB, Body: []byte(ledgerCategories)},
	}
}

// NewLedgerSupplier returns an in-memory supplier serving LedgerDocuments.
func NewLedgerSupplier() *schema.MemorySupplier {
	s := schema.NewMemorySupplier()
	for _, doc := range LedgerDocuments() {
		switch doc.Kind {
		case schema.DocAliases:
			s.SetAliasDocument(doc.Body)
		case schema.DocFields:
			s.SetFieldDocument(doc.Database, doc.Name, doc.Body)
		case schema.DocJoins:
			s.SetJoinDocument(doc.Database, doc.Body)
		case schema.DocCategories:
			s.SetCategoryDocument(doc.Database, doc.Body)
		}
	}
	return s
}

// NewLedgerRegistry returns a Registry over NewLedgerSupplier.
func NewLedgerRegistry(tb testing.TB, cacheSize int) *schema.Registry {
	tb.Helper()
	reg, err := schema.NewRegistry(NewLedgerSupplier(), schema.Options{CacheSize: cacheSize})
	require.NoError(tb, err)
	return reg
}

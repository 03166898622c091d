package types

// ANSI/X-Open type codes as reported by database metadata APIs.
const (
	CodeBit                   = -7
	CodeTinyint               = -6
	CodeSmallint              = 5
	CodeInteger               = 4
	CodeBigint                = -5
	CodeFloat                 = 6
	CodeReal                  = 7
	CodeDouble                = 8
	CodeNumeric               = 2
	CodeDecimal               = 3
	CodeChar                  = 1
	CodeVarchar               = 12
	CodeLongVarchar           = -1
	CodeNChar                 = -15
	CodeNVarchar              = -9
	CodeLongNVarchar          = -16
	CodeDate                  = 91
	CodeTime                  = 92
	CodeTimestamp             = 93
	CodeTimeWithTimezone      = 2013
	CodeTimestampWithTimezone = 2014
	CodeBinary                = -2
	CodeVarbinary             = -3
	CodeLongVarbinary         = -4
	CodeNull                  = 0
	CodeOther                 = 1111
	CodeJavaObject            = 2000
	CodeDistinct              = 2001
	CodeStruct                = 2002
	CodeArray                 = 2003
	CodeBlob                  = 2004
	CodeClob                  = 2005
	CodeRef                   = 2006
	CodeDatalink              = 70
	CodeBoolean               = 16
	CodeRowID                 = -8
	CodeNClob                 = 2011
	CodeSQLXML                = 2009
)

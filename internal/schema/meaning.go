package schema

import "strings"

var abbreviations = map[string]string{
	// Common Nouns
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone",
	"biz": "business", "pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "file": "file", "path": "path", "url": "url",
	"ip": "ip", "zip": "zipcode", "post": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"doc": "document", "usr": "user", "emp": "employee",
	"dept": "department", "grp": "group", "cat": "category",
	"loc": "location", "lat": "latitude", "lng": "longitude", "lon": "longitude",
	"geo": "geometry", "st": "street", "prov": "province", "dist": "district",
	"bal": "balance", "calc": "calculation", "rst": "result", "rslt": "result",
	"std": "standard", "avg": "average", "mid": "id", "uid": "id", "pid": "id",

	// Verbs / Status
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "kind": "kind", "val": "value",
	"ord": "order", "seq": "sequence", "idx": "index",
	"bg": "background", "fg": "foreground",
	"brd": "board", "art": "article", "auth": "authority",
	"is": "yesno", "use": "yesno", "flg": "flag",
}

// commentRules are checked in order against the lower-cased column comment.
var commentRules = []struct {
	meaning  string
	keywords []string
}{
	{"phone", []string{"전화", "휴대폰", "연락처", "핸드폰", "mobile", "phone"}},
	{"email", []string{"이메일", "메일", "email", "mail"}},
	{"address", []string{"주소", "거주지", "address"}},
	{"zipcode", []string{"우편", "zip", "postal"}},
	{"name", []string{"이름", "성명", "name"}},
	{"id", []string{"아이디", "user_id"}},
	{"password", []string{"비밀번호", "패스워드", "암호", "password"}},
	{"title", []string{"제목", "타이틀"}},
	{"description", []string{"내용", "설명", "desc"}},
	{"date", []string{"날짜", "일시", "date", "time"}},
	{"price", []string{"금액", "가격", "단가", "price", "cost"}},
	{"count", []string{"수량", "개수", "count", "qty"}},
	{"yesno", []string{"여부", "flag", "yn"}},
	{"country", []string{"국가", "나라", "country"}},
	{"city", []string{"도시", "city"}},
	{"ip", []string{"ip"}},
}

// AnalyzeMeaning guesses what a column holds, first from its comment and
// then by expanding the abbreviations in its name ("user_nm" is "user name").
// The synthetic row source picks generators by this meaning.
func AnalyzeMeaning(colName, comment string) string {
	c := strings.ToLower(comment)
	for _, rule := range commentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(c, kw) {
				return rule.meaning
			}
		}
	}

	words := strings.Split(strings.ToLower(colName), "_")
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

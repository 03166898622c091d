package engine

// Word lists for synthetic rows. Hangul text exercises the NFC path of the
// archive writer.
var (
	lastNames  = []string{"김", "이", "박", "최", "정", "강", "조", "윤", "장", "임", "한", "오"}
	firstNames = []string{"민준", "서준", "도윤", "예준", "시우", "하준", "서연", "서윤", "지우", "하은", "민서", "채원"}
	cities     = []string{"서울", "부산", "대구", "인천", "광주", "대전", "울산", "수원", "청주", "전주"}
	districts  = []string{"강남구", "서초구", "송파구", "종로구", "마포구", "영등포구", "관악구", "노원구"}
	streets    = []string{"테헤란로", "강남대로", "올림픽로", "세종대로", "을지로", "퇴계로", "종로", "양화로"}
)

// glossary pairs an English word with its Korean rendering. Synthetic text
// picks English words and translates some of them.
var glossary = []struct{ en, ko string }{
	{"archive", "보관소"}, {"record", "기록"}, {"table", "표"}, {"memory", "기억"},
	{"story", "이야기"}, {"world", "세계"}, {"time", "시간"}, {"journey", "여정"},
	{"promise", "약속"}, {"secret", "비밀"}, {"legend", "전설"}, {"future", "미래"},
	{"past", "과거"}, {"letter", "편지"}, {"library", "도서관"}, {"map", "지도"},
	{"ancient", "고대의"}, {"silent", "조용한"}, {"golden", "황금빛"}, {"lost", "잃어버린"},
	{"first", "첫번째"}, {"last", "마지막"}, {"brave", "용감한"}, {"modern", "현대의"},
	{"river", "강"}, {"mountain", "산"}, {"harbor", "항구"}, {"garden", "정원"},
}

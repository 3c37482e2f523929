package ner

// OntoNotes语料预训练模型支持的实体标签
const (
	LabelPerson      = "PERSON"      // 人名，包括虚构人物
	LabelNorp        = "NORP"        // 民族、宗教或政治团体
	LabelFac         = "FAC"         // 建筑、机场、公路、桥梁等
	LabelOrg         = "ORG"         // 公司、机构、组织等
	LabelGpe         = "GPE"         // 国家、城市、州
	LabelLoc         = "LOC"         // 非GPE地点，如山脉、水体
	LabelProduct     = "PRODUCT"     // 物品、交通工具、食物等
	LabelEvent       = "EVENT"       // 命名的飓风、战役、体育赛事等
	LabelWorkOfArt   = "WORK_OF_ART" // 书名、歌名等
	LabelLaw         = "LAW"         // 成为法律的命名文件
	LabelLanguage    = "LANGUAGE"    // 命名的语言
	LabelDate        = "DATE"        // 绝对或相对日期、时期
	LabelTime        = "TIME"        // 小于一天的时间
	LabelPercent     = "PERCENT"     // 百分比
	LabelMoney       = "MONEY"       // 货币金额
	LabelQuantity    = "QUANTITY"    // 度量，如重量、距离
	LabelOrdinal     = "ORDINAL"     // 序数词
	LabelCardinal    = "CARDINAL"    // 其他数词
)

// labelDescriptions 标签的人类可读说明
var labelDescriptions = map[string]string{
	LabelPerson:    "People, including fictional",
	LabelNorp:      "Nationalities or religious or political groups",
	LabelFac:       "Buildings, airports, highways, bridges, etc.",
	LabelOrg:       "Companies, agencies, institutions, etc.",
	LabelGpe:       "Countries, cities, states",
	LabelLoc:       "Non-GPE locations, mountain ranges, bodies of water",
	LabelProduct:   "Objects, vehicles, foods, etc. (Not services.)",
	LabelEvent:     "Named hurricanes, battles, wars, sports events, etc.",
	LabelWorkOfArt: "Titles of books, songs, etc.",
	LabelLaw:       "Named documents made into laws",
	LabelLanguage:  "Any named language",
	LabelDate:      "Absolute or relative dates or periods",
	LabelTime:      "Times smaller than a day",
	LabelPercent:   "Percentage, including \"%\"",
	LabelMoney:     "Monetary values, including unit",
	LabelQuantity:  "Measurements, as of weight or distance",
	LabelOrdinal:   "\"first\", \"second\", etc.",
	LabelCardinal:  "Numerals that do not fall under another type",
}

// Explain 返回实体标签的人类可读说明
// 未知标签返回空字符串
func Explain(label string) string {
	return labelDescriptions[label]
}

// Labels 返回所有已知的实体标签
func Labels() []string {
	return []string{
		LabelPerson, LabelNorp, LabelFac, LabelOrg, LabelGpe, LabelLoc,
		LabelProduct, LabelEvent, LabelWorkOfArt, LabelLaw, LabelLanguage,
		LabelDate, LabelTime, LabelPercent, LabelMoney, LabelQuantity,
		LabelOrdinal, LabelCardinal,
	}
}

package translate

import (
	"context"
	"fmt"

	"github.com/ppiankov/kcal/internal/model"
)

// builtinDictionary holds common foods per language. Keys are normalized names.
var builtinDictionary = map[string]map[string]string{
	"es": {
		"pollo": "chicken", "pechuga de pollo": "chicken", "muslo de pollo": "chicken thigh",
		"arroz": "rice", "arroz blanco": "white rice", "arroz integral": "brown rice",
		"manzana": "apple", "platano": "banana", "banana": "banana", "naranja": "orange",
		"fresas": "strawberries", "arandanos": "blueberries", "aguacate": "avocado",
		"huevo": "egg", "huevos": "egg", "leche": "milk", "pan": "bread", "pan integral": "whole wheat bread",
		"mantequilla": "butter", "queso cheddar": "cheddar cheese", "yogur griego": "greek yogurt",
		"ternera": "beef", "carne de res": "beef", "cerdo": "pork", "pavo": "turkey", "tocino": "bacon",
		"salmon": "salmon", "atun": "tuna", "bacalao": "cod", "gambas": "shrimp", "camarones": "shrimp",
		"patata": "potato", "papa": "potato", "batata": "sweet potato", "boniato": "sweet potato",
		"zanahoria": "carrot", "brocoli": "broccoli", "espinacas": "spinach", "tomate": "tomato",
		"cebolla": "onion", "pepino": "cucumber", "maiz": "corn",
		"lentejas": "lentils", "garbanzos": "chickpeas", "frijoles negros": "black beans",
		"almendras": "almonds", "nueces": "walnuts", "mantequilla de cacahuete": "peanut butter",
		"avena": "oats", "pasta": "pasta", "quinoa": "quinoa", "azucar": "sugar", "miel": "honey",
		"aceite de oliva": "olive oil", "chocolate negro": "dark chocolate",
	},
	"fr": {
		"poulet": "chicken", "blanc de poulet": "chicken", "cuisse de poulet": "chicken thigh",
		"riz": "rice", "riz blanc": "white rice", "riz complet": "brown rice",
		"pomme": "apple", "banane": "banana", "orange": "orange", "fraises": "strawberries",
		"myrtilles": "blueberries", "avocat": "avocado",
		"oeuf": "egg", "œuf": "egg", "oeufs": "egg", "lait": "milk", "pain": "bread", "pain complet": "whole wheat bread",
		"beurre": "butter", "cheddar": "cheddar cheese", "yaourt grec": "greek yogurt",
		"boeuf": "beef", "porc": "pork", "dinde": "turkey", "lard": "bacon",
		"saumon": "salmon", "thon": "tuna", "cabillaud": "cod", "crevettes": "shrimp",
		"pomme de terre": "potato", "patate douce": "sweet potato", "carotte": "carrot",
		"brocoli": "broccoli", "epinards": "spinach", "tomate": "tomato", "oignon": "onion",
		"concombre": "cucumber", "mais": "corn",
		"lentilles": "lentils", "pois chiches": "chickpeas", "haricots noirs": "black beans",
		"amandes": "almonds", "noix": "walnuts", "beurre de cacahuete": "peanut butter",
		"flocons d avoine": "oats", "pates": "pasta", "quinoa": "quinoa", "sucre": "sugar", "miel": "honey",
		"huile d olive": "olive oil", "chocolat noir": "dark chocolate",
	},
	"de": {
		"hahnchen": "chicken", "huhn": "chicken", "hahnchenbrust": "chicken", "hahnchenschenkel": "chicken thigh",
		"reis": "rice", "weisser reis": "white rice", "vollkornreis": "brown rice",
		"apfel": "apple", "banane": "banana", "orange": "orange", "erdbeeren": "strawberries",
		"heidelbeeren": "blueberries", "avocado": "avocado",
		"ei": "egg", "eier": "egg", "milch": "milk", "brot": "bread", "vollkornbrot": "whole wheat bread",
		"butter": "butter", "cheddar": "cheddar cheese", "griechischer joghurt": "greek yogurt",
		"rindfleisch": "beef", "schweinefleisch": "pork", "truthahn": "turkey", "pute": "turkey", "speck": "bacon",
		"lachs": "salmon", "thunfisch": "tuna", "kabeljau": "cod", "garnelen": "shrimp",
		"kartoffel": "potato", "kartoffeln": "potato", "susskartoffel": "sweet potato",
		"karotte": "carrot", "mohre": "carrot", "brokkoli": "broccoli", "spinat": "spinach",
		"tomate": "tomato", "zwiebel": "onion", "gurke": "cucumber", "mais": "corn",
		"linsen": "lentils", "kichererbsen": "chickpeas", "schwarze bohnen": "black beans",
		"mandeln": "almonds", "walnusse": "walnuts", "erdnussbutter": "peanut butter",
		"haferflocken": "oats", "nudeln": "pasta", "quinoa": "quinoa", "zucker": "sugar", "honig": "honey",
		"olivenol": "olive oil", "zartbitterschokolade": "dark chocolate",
	},
	"it": {
		"pollo": "chicken", "petto di pollo": "chicken", "coscia di pollo": "chicken thigh",
		"riso": "rice", "riso bianco": "white rice", "riso integrale": "brown rice",
		"mela": "apple", "banana": "banana", "arancia": "orange", "fragole": "strawberries",
		"mirtilli": "blueberries", "avocado": "avocado",
		"uovo": "egg", "uova": "egg", "latte": "milk", "pane": "bread", "pane integrale": "whole wheat bread",
		"burro": "butter", "yogurt greco": "greek yogurt",
		"manzo": "beef", "maiale": "pork", "tacchino": "turkey", "pancetta": "bacon",
		"salmone": "salmon", "tonno": "tuna", "merluzzo": "cod", "gamberi": "shrimp",
		"patata": "potato", "patate": "potato", "patata dolce": "sweet potato",
		"carota": "carrot", "broccoli": "broccoli", "spinaci": "spinach", "pomodoro": "tomato",
		"cipolla": "onion", "cetriolo": "cucumber", "mais": "corn",
		"lenticchie": "lentils", "ceci": "chickpeas", "fagioli neri": "black beans",
		"mandorle": "almonds", "noci": "walnuts", "burro di arachidi": "peanut butter",
		"avena": "oats", "pasta": "pasta", "quinoa": "quinoa", "zucchero": "sugar", "miele": "honey",
		"olio d oliva": "olive oil", "olio di oliva": "olive oil", "cioccolato fondente": "dark chocolate",
	},
	"pt": {
		"frango": "chicken", "peito de frango": "chicken", "coxa de frango": "chicken thigh",
		"arroz": "rice", "arroz branco": "white rice", "arroz integral": "brown rice",
		"maca": "apple", "banana": "banana", "laranja": "orange", "morangos": "strawberries",
		"mirtilos": "blueberries", "abacate": "avocado",
		"ovo": "egg", "ovos": "egg", "leite": "milk", "pao": "bread", "pao integral": "whole wheat bread",
		"manteiga": "butter", "iogurte grego": "greek yogurt",
		"carne bovina": "beef", "carne de vaca": "beef", "porco": "pork", "peru": "turkey", "bacon": "bacon",
		"salmao": "salmon", "atum": "tuna", "bacalhau": "cod", "camarao": "shrimp",
		"batata": "potato", "batata doce": "sweet potato", "cenoura": "carrot", "brocolis": "broccoli",
		"espinafre": "spinach", "tomate": "tomato", "cebola": "onion", "pepino": "cucumber", "milho": "corn",
		"lentilhas": "lentils", "grao de bico": "chickpeas", "feijao preto": "black beans",
		"amendoas": "almonds", "nozes": "walnuts", "manteiga de amendoim": "peanut butter",
		"aveia": "oats", "macarrao": "pasta", "massa": "pasta", "quinoa": "quinoa", "acucar": "sugar", "mel": "honey",
		"azeite": "olive oil", "chocolate amargo": "dark chocolate",
	},
}

// Dictionary translates from a fixed in-memory table
type Dictionary struct {
	entries map[string]map[string]string
}

// NewDictionary returns a dictionary over the built-in table
func NewDictionary() *Dictionary {
	return NewDictionaryFrom(builtinDictionary)
}

// NewDictionaryFrom builds a dictionary from lang -> name -> english.
// Both sides are normalized so lookups match cache keys.
func NewDictionaryFrom(entries map[string]map[string]string) *Dictionary {
	d := &Dictionary{entries: make(map[string]map[string]string, len(entries))}
	for lang, words := range entries {
		lang = model.NormalizeLanguage(lang)
		m := d.entries[lang]
		if m == nil {
			m = make(map[string]string, len(words))
			d.entries[lang] = m
		}
		for from, to := range words {
			m[model.Normalize(from)] = model.Normalize(to)
		}
	}
	return d
}

// Name returns the translator name
func (d *Dictionary) Name() string {
	return "dictionary"
}

// Translate looks the name up in the table for sourceLang
func (d *Dictionary) Translate(ctx context.Context, name, sourceLang string) (string, error) {
	lang := model.NormalizeLanguage(sourceLang)
	if en, ok := d.entries[lang][model.Normalize(name)]; ok {
		return en, nil
	}
	return "", fmt.Errorf("dictionary %s:%s: %w", lang, name, ErrNoTranslation)
}

// Languages returns the number of languages covered
func (d *Dictionary) Languages() int {
	return len(d.entries)
}
